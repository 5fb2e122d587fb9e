package conversation

import (
	"context"

	"voice-assistant-go/internal/util"
)

type memoryStore struct {
	ring *util.Ring[InteractionRecord]
}

// NewMemory builds an in-memory history store.
func NewMemory(cfg Config) Store {
	return &memoryStore{
		ring: util.NewRing[InteractionRecord](cfg.MaxHistory),
	}
}

func (s *memoryStore) Append(_ context.Context, record InteractionRecord) error {
	s.ring.Append(record)
	return nil
}

func (s *memoryStore) List(_ context.Context, limit int) ([]InteractionRecord, error) {
	return s.ring.Tail(limit), nil
}

func (s *memoryStore) Count(_ context.Context) (int, error) {
	return s.ring.Len(), nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.ring.Clear()
	return nil
}

func (s *memoryStore) Close(_ context.Context) error {
	return nil
}
