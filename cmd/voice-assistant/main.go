package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"voice-assistant-go/internal/bootstrap"
	"voice-assistant-go/internal/platform/config"
	"voice-assistant-go/internal/platform/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	path := *configPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = ""
	}

	result, err := config.NewLoader(path).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := result.Config

	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if result.Path != "" {
		logger.InfoTag("BOOT", "configuration loaded from %s", result.Path)
	} else {
		logger.InfoTag("BOOT", "using built-in configuration defaults")
	}

	app, err := bootstrap.NewApp(cfg, logger)
	if err != nil {
		logger.ErrorTag("BOOT", "startup failed: %v", err)
		logger.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		logger.ErrorTag("BOOT", "runtime failure: %v", err)
		logger.Close()
		os.Exit(1)
	}
}
