package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	key    string
	max    int
}

// NewRedis constructs a redis-backed history store. Records live in one
// list, newest first, trimmed to the configured maximum.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "conversation:"
	}

	return &redisStore{
		client: client,
		key:    prefix + "history",
		max:    cfg.MaxHistory,
	}, nil
}

func (s *redisStore) Append(ctx context.Context, record InteractionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, int64(s.max-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) List(ctx context.Context, limit int) ([]InteractionRecord, error) {
	if limit <= 0 || limit > s.max {
		limit = s.max
	}

	raw, err := s.client.LRange(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	// LPUSH stores newest first; reverse to oldest-first ordering.
	records := make([]InteractionRecord, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var record InteractionRecord
		if err := json.Unmarshal([]byte(raw[i]), &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *redisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	return int(n), err
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
