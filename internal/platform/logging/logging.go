package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// tagColors maps module tags to console colors.
var tagColors = map[string]string{
	"BOOT":    "\x1b[96m",
	"VAD":     "\x1b[35m",
	"CONN":    "\x1b[94m",
	"SESSION": "\x1b[92m",
	"VISION":  "\x1b[95m",
	"HISTORY": "\x1b[34m",
	"HTTP":    "\x1b[95m",
}

// textHandler renders human-readable console output with per-module colors.
type textHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelColor = colorDebug
	case slog.LevelInfo:
		levelColor = colorInfo
	case slog.LevelWarn:
		levelColor = colorWarn
	case slog.LevelError:
		levelColor = colorError
	default:
		levelColor = colorReset
	}

	msg := r.Message
	var output string
	if tag, ok := leadingTag(msg); ok {
		if color, known := tagColors[tag]; known {
			output = fmt.Sprintf("%s[%s]%s %s%s%s",
				colorTime, timeStr, colorReset, color, msg, colorReset)
		}
	}
	if output == "" {
		output = fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
			colorTime, timeStr, colorReset,
			levelColor, r.Level.String(), colorReset, msg)
	}

	if r.NumAttrs() > 0 {
		output += " {"
		r.Attrs(func(a slog.Attr) bool {
			output += fmt.Sprintf(" %s=%v", a.Key, a.Value)
			return true
		})
		output += " }"
	}
	output += "\n"

	_, err := h.writer.Write([]byte(output))
	return err
}

func (h *textHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *textHandler) WithGroup(string) slog.Handler      { return h }

func leadingTag(msg string) (string, bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", false
	}
	end := strings.IndexByte(msg, ']')
	if end < 1 {
		return "", false
	}
	return msg[1:end], true
}

// Logger writes colored text to the console and JSON records to a file.
type Logger struct {
	config     Config
	jsonLogger *slog.Logger
	textLogger *slog.Logger
	logFile    *os.File
	mu         sync.RWMutex
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a Logger writing to stdout and, when configured, to
// Dir/Filename as JSON records.
func New(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)

	logger := &Logger{
		config: cfg,
		textLogger: slog.New(&textHandler{
			writer: os.Stdout,
			level:  level,
		}),
	}

	if cfg.Dir != "" && cfg.Filename != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logPath := filepath.Join(cfg.Dir, cfg.Filename)
		file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logger.logFile = file
		logger.jsonLogger = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{
			Level: level,
		}))
	}

	return logger, nil
}

// Slog exposes the structured console logger for integrations that want
// the raw slog API.
func (l *Logger) Slog() *slog.Logger {
	return l.textLogger
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		err := l.logFile.Close()
		l.logFile = nil
		return err
	}
	return nil
}

func (l *Logger) log(level slog.Level, msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ctx := context.Background()
	record := slog.NewRecord(time.Now(), level, msg, 0)
	if h := l.textLogger.Handler(); h.Enabled(ctx, level) {
		_ = h.Handle(ctx, record)
	}
	if l.jsonLogger != nil {
		if h := l.jsonLogger.Handler(); h.Enabled(ctx, level) {
			_ = h.Handle(ctx, record)
		}
	}
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, sprintf(format, args...))
}

// Tagged variants prefix the message with a module tag so the console
// handler can colorize per module.

func (l *Logger) DebugTag(tag, format string, args ...any) {
	l.log(slog.LevelDebug, "["+tag+"] "+sprintf(format, args...))
}

func (l *Logger) InfoTag(tag, format string, args ...any) {
	l.log(slog.LevelInfo, "["+tag+"] "+sprintf(format, args...))
}

func (l *Logger) WarnTag(tag, format string, args ...any) {
	l.log(slog.LevelWarn, "["+tag+"] "+sprintf(format, args...))
}

func (l *Logger) ErrorTag(tag, format string, args ...any) {
	l.log(slog.LevelError, "["+tag+"] "+sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
