package conversation

import (
	"context"
	"time"

	"voice-assistant-go/internal/platform/errors"
	"voice-assistant-go/internal/platform/logging"
)

// Manager is the conversation facade used by the session layer. It
// timestamps records on the way in and shields callers from backend
// details.
type Manager struct {
	store  Store
	logger *logging.Logger
	now    func() time.Time
}

// NewManager wraps a store.
func NewManager(store Store, logger *logging.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// AddInteraction records one completed exchange.
func (m *Manager) AddInteraction(ctx context.Context, userInput, systemResponse string, metadata map[string]any) error {
	record := InteractionRecord{
		Timestamp:      m.now(),
		UserInput:      userInput,
		SystemResponse: systemResponse,
		Metadata:       metadata,
	}
	if err := m.store.Append(ctx, record); err != nil {
		return errors.Wrap(errors.KindStorage, "conversation.add", "failed to record interaction", err)
	}
	if m.logger != nil {
		m.logger.DebugTag("HISTORY", "recorded interaction (input=%d chars, response=%d chars)",
			len(userInput), len(systemResponse))
	}
	return nil
}

// GetHistory returns up to limit records, oldest first. A limit of 0
// returns the full retained history.
func (m *Manager) GetHistory(ctx context.Context, limit int) ([]InteractionRecord, error) {
	records, err := m.store.List(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "conversation.history", "failed to load history", err)
	}
	return records, nil
}

// Count reports how many records are currently retained.
func (m *Manager) Count(ctx context.Context) (int, error) {
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.KindStorage, "conversation.count", "failed to count history", err)
	}
	return n, nil
}

// HistorySummary describes the retained history at a glance.
type HistorySummary struct {
	Count  int        `json:"count"`
	Oldest *time.Time `json:"oldest,omitempty"`
	Newest *time.Time `json:"newest,omitempty"`
}

// Summary reports the retained record count and time span.
func (m *Manager) Summary(ctx context.Context) (HistorySummary, error) {
	records, err := m.store.List(ctx, 0)
	if err != nil {
		return HistorySummary{}, errors.Wrap(errors.KindStorage, "conversation.summary", "failed to load history", err)
	}

	summary := HistorySummary{Count: len(records)}
	if len(records) > 0 {
		oldest := records[0].Timestamp
		newest := records[len(records)-1].Timestamp
		summary.Oldest = &oldest
		summary.Newest = &newest
	}
	return summary, nil
}

// Clear drops all retained history.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return errors.Wrap(errors.KindStorage, "conversation.clear", "failed to clear history", err)
	}
	return nil
}

// Close releases backend resources.
func (m *Manager) Close(ctx context.Context) error {
	return m.store.Close(ctx)
}
