package conversation

import (
	"context"
	"time"
)

// InteractionRecord is one user/assistant exchange.
type InteractionRecord struct {
	Timestamp      time.Time      `json:"timestamp"`
	UserInput      string         `json:"user_input"`
	SystemResponse string         `json:"system_response"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Store persists a bounded, ordered interaction history. Every backend
// trims the oldest records beyond the configured maximum.
type Store interface {
	Append(ctx context.Context, record InteractionRecord) error
	List(ctx context.Context, limit int) ([]InteractionRecord, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver     string
	MaxHistory int
	SQLite     *SQLiteConfig
	Redis      *RedisConfig
}

// SQLiteConfig provides the database dependency parameters.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
