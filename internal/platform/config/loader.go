package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from a YAML file layered over the built-in
// defaults, with a handful of environment overrides.
type Loader struct {
	path      string
	useDotEnv bool
}

// NewLoader creates a loader for the given config file path. An empty
// path means defaults plus environment only.
func NewLoader(path string) *Loader {
	return &Loader{
		path:      path,
		useDotEnv: true,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading
// the configuration.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the effective configuration.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// Missing .env is fine; system environment still applies.
		_ = godotenv.Load()
	}

	cfg := Default()
	path := l.path

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_URL"); v != "" {
		cfg.Connection.ServerURL = v
	}
	if v := os.Getenv("SNAPSHOT_URL"); v != "" {
		cfg.Vision.SnapshotURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Conversation.Store.Redis.Addr = v
	}
}

func validate(cfg *Config) error {
	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.FrameDuration <= 0 {
		return fmt.Errorf("invalid frame duration: %d", cfg.Audio.FrameDuration)
	}
	if cfg.VAD.Sensitivity < 0 || cfg.VAD.Sensitivity > 1 {
		return fmt.Errorf("invalid vad sensitivity: %f", cfg.VAD.Sensitivity)
	}
	if cfg.Connection.ServerURL == "" {
		return fmt.Errorf("connection server_url is required")
	}
	if cfg.Conversation.MaxHistory <= 0 {
		return fmt.Errorf("invalid conversation max_history: %d", cfg.Conversation.MaxHistory)
	}
	return nil
}
