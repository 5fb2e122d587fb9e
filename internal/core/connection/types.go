package connection

import (
	"fmt"
	"sync/atomic"
)

// State describes the connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SpeechRequest is the outbound payload for one captured utterance.
// Audio and Image are base64 encoded by the caller.
type SpeechRequest struct {
	RequestID     string         `json:"request_id"`
	Type          string         `json:"type"`
	Timestamp     float64        `json:"timestamp"`
	Audio         string         `json:"audio"`
	Image         string         `json:"image,omitempty"`
	ImageAnalysis map[string]any `json:"image_analysis,omitempty"`
}

// Response is the inbound result correlated back to a request.
type Response struct {
	RequestID     string `json:"request_id"`
	Transcription string `json:"transcription"`
	Response      string `json:"response"`
	Error         string `json:"error,omitempty"`
}

// requestIDs hands out monotonically increasing identifiers so every
// in-flight request within a process is distinguishable.
type requestIDs struct {
	counter atomic.Uint64
}

func (r *requestIDs) next() string {
	return fmt.Sprintf("req-%d", r.counter.Add(1))
}
