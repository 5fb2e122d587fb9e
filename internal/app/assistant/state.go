package assistant

import (
	"context"
	"sync"
	"time"

	"voice-assistant-go/internal/domain/conversation"
	"voice-assistant-go/internal/util"
)

// EventRecord is one entry in the recent activity log.
type EventRecord struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// eventLog retains the most recent pipeline events.
type eventLog struct {
	ring *util.Ring[EventRecord]
}

func newEventLog(capacity int) *eventLog {
	return &eventLog{ring: util.NewRing[EventRecord](capacity)}
}

func (l *eventLog) record(ev EventRecord) {
	l.ring.Append(ev)
}

func (l *eventLog) tail(n int) []EventRecord {
	return l.ring.Tail(n)
}

// audioBuffer accumulates utterance samples from the detector's frame
// sink. The sink runs on the detector goroutine, take/reset on the
// worker; the mutex keeps handoff clean.
type audioBuffer struct {
	mu      sync.Mutex
	samples []int16
}

func newAudioBuffer() *audioBuffer {
	return &audioBuffer{}
}

func (b *audioBuffer) append(frame []int16) {
	b.mu.Lock()
	b.samples = append(b.samples, frame...)
	b.mu.Unlock()
}

func (b *audioBuffer) take() []int16 {
	b.mu.Lock()
	samples := b.samples
	b.samples = nil
	b.mu.Unlock()
	return samples
}

func (b *audioBuffer) reset() {
	b.mu.Lock()
	b.samples = nil
	b.mu.Unlock()
}

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	Running           bool   `json:"running"`
	Speaking          bool   `json:"speaking"`
	Connection        string `json:"connection"`
	SessionsCompleted uint64 `json:"sessions_completed"`
	SessionsFailed    uint64 `json:"sessions_failed"`
	SessionsDiscarded uint64 `json:"sessions_discarded"`
	LastTranscription string `json:"last_transcription,omitempty"`
	LastResponse      string `json:"last_response,omitempty"`
}

// Status reports the current pipeline state.
func (o *Orchestrator) Status() Status {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()

	return Status{
		Running:           o.running.Load(),
		Speaking:          o.running.Load() && o.detector.IsSpeechDetected(),
		Connection:        o.conn.State().String(),
		SessionsCompleted: o.sessionsCompleted,
		SessionsFailed:    o.sessionsFailed,
		SessionsDiscarded: o.sessionsDiscarded,
		LastTranscription: o.lastTranscription,
		LastResponse:      o.lastResponse,
	}
}

// RecentEvents returns the newest n retained events, oldest first. A
// non-positive n returns the full retained log.
func (o *Orchestrator) RecentEvents(n int) []EventRecord {
	return o.events.tail(n)
}

// IsServerConnected reports backend reachability.
func (o *Orchestrator) IsServerConnected() bool {
	return o.conn.IsConnected()
}

// IsSpeechActive reports the detector's current speech state.
func (o *Orchestrator) IsSpeechActive() bool {
	return o.running.Load() && o.detector.IsSpeechDetected()
}

// History returns recorded exchanges, oldest first. A limit of 0 means
// the full retained history.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]conversation.InteractionRecord, error) {
	if o.history == nil {
		return nil, nil
	}
	return o.history.GetHistory(ctx, limit)
}
