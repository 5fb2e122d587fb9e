package assistant

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"voice-assistant-go/internal/core/connection"
	"voice-assistant-go/internal/domain/eventbus"
)

// session carries everything gathered between a speech start and its
// matching end.
type session struct {
	id       string
	startAt  time.Time
	image    []byte
	analysis map[string]any
}

// beginSession opens a new session: capture an image while the user is
// still talking so it reflects the scene at utterance time.
func (o *Orchestrator) beginSession(ctx context.Context, at time.Time) *session {
	s := &session{
		id:      uuid.NewString(),
		startAt: at,
	}

	o.audio.reset()
	o.events.record(EventRecord{Type: "speech_start", SessionID: s.id, Timestamp: at})
	o.logger.InfoTag("SESSION", "speech started (session=%s)", s.id)
	o.bus.Publish(eventbus.EventSpeechStart, eventbus.SpeechEventData{
		SessionID: s.id,
		Timestamp: unixSeconds(at),
	})

	if o.vision != nil {
		s.image = o.vision.Capture(ctx)
		if len(s.image) > 0 {
			s.analysis = o.vision.Analyze(s.image)
		}
	}
	return s
}

// finishSession sends the buffered utterance and records the exchange.
// An empty buffer means the detector confirmed speech but no frames were
// collected; the session is discarded without contacting the backend.
func (o *Orchestrator) finishSession(ctx context.Context, s *session, at time.Time) {
	duration := at.Sub(s.startAt)
	samples := o.audio.take()

	o.events.record(EventRecord{Type: "speech_end", SessionID: s.id, Timestamp: at})
	o.bus.Publish(eventbus.EventSpeechEnd, eventbus.SpeechEventData{
		SessionID: s.id,
		Timestamp: unixSeconds(at),
		HasImage:  len(s.image) > 0,
	})

	if len(samples) == 0 {
		o.logger.InfoTag("SESSION", "empty utterance discarded (session=%s)", s.id)
		o.statsMu.Lock()
		o.sessionsDiscarded++
		o.statsMu.Unlock()
		o.events.record(EventRecord{Type: "session_discarded", SessionID: s.id, Timestamp: at})
		return
	}

	req := connection.SpeechRequest{
		Timestamp:     unixSeconds(at),
		Audio:         encodePCM(samples),
		ImageAnalysis: s.analysis,
	}
	if len(s.image) > 0 {
		req.Image = base64.StdEncoding.EncodeToString(s.image)
	}

	o.logger.InfoTag("SESSION", "sending utterance (session=%s, duration=%.2fs, samples=%d, image=%t)",
		s.id, duration.Seconds(), len(samples), len(s.image) > 0)

	resp, err := o.conn.Send(ctx, req)
	if err != nil {
		o.failSession(s, duration, err.Error())
		return
	}
	if resp.Error != "" {
		o.failSession(s, duration, resp.Error)
		return
	}

	metadata := map[string]any{
		"session_id": s.id,
		"duration":   duration.Seconds(),
		"has_image":  len(s.image) > 0,
	}
	if o.history != nil {
		if err := o.history.AddInteraction(ctx, resp.Transcription, resp.Response, metadata); err != nil {
			o.logger.WarnTag("SESSION", "failed to record interaction: %v", err)
		}
	}

	o.statsMu.Lock()
	o.sessionsCompleted++
	o.lastTranscription = resp.Transcription
	o.lastResponse = resp.Response
	o.statsMu.Unlock()

	o.events.record(EventRecord{Type: "session_completed", SessionID: s.id, Timestamp: o.now()})
	o.logger.InfoTag("SESSION", "session completed (session=%s): %q", s.id, resp.Transcription)
	o.bus.Publish(eventbus.EventSessionCompleted, eventbus.SessionEventData{
		SessionID:     s.id,
		Duration:      duration.Seconds(),
		Transcription: resp.Transcription,
	})
}

func (o *Orchestrator) failSession(s *session, duration time.Duration, message string) {
	o.statsMu.Lock()
	o.sessionsFailed++
	o.statsMu.Unlock()

	o.events.record(EventRecord{Type: "session_failed", SessionID: s.id, Timestamp: o.now(), Detail: message})
	o.logger.ErrorTag("SESSION", "session failed (session=%s): %s", s.id, message)
	o.bus.Publish(eventbus.EventSessionFailed, eventbus.SessionEventData{
		SessionID: s.id,
		Duration:  duration.Seconds(),
		Error:     message,
	})
}

// encodePCM packs samples as little-endian 16-bit PCM, base64 encoded.
func encodePCM(samples []int16) string {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
