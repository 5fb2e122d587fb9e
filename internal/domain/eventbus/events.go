package eventbus

// Topics published by the session pipeline.
const (
	EventSpeechStart      = "speech:start"
	EventSpeechEnd        = "speech:end"
	EventSessionCompleted = "session:completed"
	EventSessionFailed    = "session:failed"
	EventConnectionUp     = "connection:up"
	EventConnectionDown   = "connection:down"
)

// SpeechEventData describes a speech boundary event.
type SpeechEventData struct {
	SessionID string  `json:"session_id"`
	Timestamp float64 `json:"timestamp"`
	HasImage  bool    `json:"has_image,omitempty"`
}

// SessionEventData describes a finalized session outcome.
type SessionEventData struct {
	SessionID     string  `json:"session_id"`
	Duration      float64 `json:"duration"`
	Transcription string  `json:"transcription,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// ConnectionEventData describes a connection state change.
type ConnectionEventData struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}
