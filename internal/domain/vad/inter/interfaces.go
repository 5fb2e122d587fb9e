package inter

import (
	"context"
	"time"
)

// AudioSource delivers fixed-duration frames of mono 16-bit samples.
// Read blocks until a full frame is available or ctx is cancelled.
type AudioSource interface {
	Read(ctx context.Context) ([]int16, error)
	Close() error
}

// SourceFactory opens an audio source. The detector calls it on every
// Start so stop/start cycles reacquire the device.
type SourceFactory func() (AudioSource, error)

// Detector classifies a live audio stream into speech and silence.
type Detector interface {
	Start() error
	Stop()
	IsSpeechDetected() bool
}

// FrameSink receives every processed frame together with the detector's
// current speech decision. Invoked from the detector's processing loop;
// implementations must not block.
type FrameSink func(frame []int16, speaking bool)

// Config holds voice activity detection tuning.
type Config struct {
	SampleRate        int           `json:"sample_rate"`
	Channels          int           `json:"channels"`
	FrameDuration     int           `json:"frame_duration"` // milliseconds
	Sensitivity       float64       `json:"sensitivity"`    // 0.0-1.0 user factor
	SpeechTimeout     time.Duration `json:"speech_timeout"`
	SilenceTimeout    time.Duration `json:"silence_timeout"`
	CalibrationWindow time.Duration `json:"calibration_window"`
}

// DefaultConfig returns the detection defaults used by the assistant.
func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		Channels:          1,
		FrameDuration:     30,
		Sensitivity:       0.3,
		SpeechTimeout:     time.Second,
		SilenceTimeout:    1500 * time.Millisecond,
		CalibrationWindow: 2 * time.Second,
	}
}
