package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"voice-assistant-go/internal/app/assistant"
	"voice-assistant-go/internal/core/connection"
	"voice-assistant-go/internal/domain/conversation"
	"voice-assistant-go/internal/domain/eventbus"
	"voice-assistant-go/internal/domain/vad/energy"
	"voice-assistant-go/internal/domain/vad/inter"
	"voice-assistant-go/internal/domain/vad/source"
	"voice-assistant-go/internal/domain/vision"
	"voice-assistant-go/internal/platform/config"
	"voice-assistant-go/internal/platform/errors"
	"voice-assistant-go/internal/platform/logging"
	"voice-assistant-go/internal/transport/http/webapi"
)

const shutdownTimeout = 5 * time.Second

// App wires the full pipeline: audio in, detection, backend connection,
// conversation history and the operational HTTP surface.
type App struct {
	cfg     *config.Config
	logger  *logging.Logger
	bus     *eventbus.Bus
	orch    *assistant.Orchestrator
	history *conversation.Manager
	server  *http.Server
}

// NewApp assembles every component from configuration.
func NewApp(cfg *config.Config, logger *logging.Logger) (*App, error) {
	bus := eventbus.New()

	history, err := buildHistory(cfg, logger)
	if err != nil {
		return nil, errors.Wrap(errors.KindBootstrap, "bootstrap.history", "conversation store init failed", err)
	}

	detector := energy.New(inter.Config{
		SampleRate:        cfg.Audio.SampleRate,
		Channels:          cfg.Audio.Channels,
		FrameDuration:     cfg.Audio.FrameDuration,
		Sensitivity:       cfg.VAD.Sensitivity,
		SpeechTimeout:     cfg.VAD.SpeechTimeout,
		SilenceTimeout:    cfg.VAD.SilenceTimeout,
		CalibrationWindow: cfg.VAD.CalibrationWindow,
	}, source.Factory(cfg.Audio.Device, cfg.Audio.SampleRate, cfg.Audio.FrameDuration), logger)

	conn := connection.New(connection.Options{
		ServerURL:      cfg.Connection.ServerURL,
		Timeout:        cfg.Connection.Timeout,
		RetryLimit:     cfg.Connection.RetryLimit,
		InitialBackoff: cfg.Connection.InitialBackoff,
		MaxBackoff:     cfg.Connection.MaxBackoff,
	}, logger, bus)

	deps := assistant.Dependencies{
		Detector: detector,
		Conn:     conn,
		History:  history,
		Bus:      bus,
		Logger:   logger,
	}
	if cfg.Vision.Enabled && cfg.Vision.SnapshotURL != "" {
		deps.Vision = vision.NewAnalyzer(vision.Options{
			Camera:   vision.NewSnapshotCamera(cfg.Vision.SnapshotURL, 3*time.Second),
			Logger:   logger,
			Cooldown: cfg.Vision.Cooldown,
			MaxWidth: cfg.Vision.MaxWidth,
		})
	} else {
		logger.InfoTag("BOOT", "vision disabled")
	}

	orch := assistant.New(assistant.Options{}, deps)
	detector.SetFrameSink(orch.HandleFrame)

	return &App{
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
		orch:    orch,
		history: history,
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port),
			Handler: buildRouter(cfg, logger, orch, history),
		},
	}, nil
}

func buildHistory(cfg *config.Config, logger *logging.Logger) (*conversation.Manager, error) {
	storeCfg := conversation.Config{
		Driver:     cfg.Conversation.Store.Driver,
		MaxHistory: cfg.Conversation.MaxHistory,
		Redis: &conversation.RedisConfig{
			Addr:     cfg.Conversation.Store.Redis.Addr,
			Username: cfg.Conversation.Store.Redis.Username,
			Password: cfg.Conversation.Store.Redis.Password,
			DB:       cfg.Conversation.Store.Redis.DB,
			Prefix:   cfg.Conversation.Store.Redis.Prefix,
		},
	}

	var deps conversation.Dependencies
	if storeCfg.Driver == conversation.DriverSQLite {
		dsn := cfg.Conversation.Store.SQLite.DSN
		if dsn == "" {
			dsn = "assistant.db"
		}
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, err
		}
		deps.SQLiteDB = db
	}

	store, err := conversation.NewStore(storeCfg, deps)
	if err != nil {
		return nil, err
	}
	logger.InfoTag("BOOT", "conversation store ready (driver=%s)", storeCfg.Driver)
	return conversation.NewManager(store, logger), nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, orch *assistant.Orchestrator, history *conversation.Manager) *gin.Engine {
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	api := engine.Group("/api")
	webapi.NewService(orch, history, logger).Register(context.Background(), api)
	return engine
}

// Run starts the pipeline and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	// A down backend must not prevent boot; the operator can start the
	// pipeline later through the API once the backend is reachable.
	if err := a.orch.Start(ctx); err != nil {
		a.logger.WarnTag("BOOT", "pipeline not started: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfoTag("BOOT", "http server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(errors.KindBootstrap, "bootstrap.run", "http server failed", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.shutdown()
		return nil
	})

	return g.Wait()
}

// shutdown stops components in reverse startup order.
func (a *App) shutdown() {
	a.logger.InfoTag("BOOT", "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WarnTag("BOOT", "http shutdown: %v", err)
	}

	if err := a.orch.Stop(); err != nil {
		a.logger.WarnTag("BOOT", "pipeline stop: %v", err)
	}
	if err := a.history.Close(context.Background()); err != nil {
		a.logger.WarnTag("BOOT", "history close: %v", err)
	}
	a.logger.InfoTag("BOOT", "shutdown complete")
}
