package config

import "time"

// Default returns the built-in configuration. Values mirror the tuning
// the assistant ships with: 16 kHz mono audio in 30 ms frames, a 1 s
// speech confirmation window and a 1.5 s silence window.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  "assistant.log",
		},
		Audio: AudioConfig{
			SampleRate:    16000,
			Channels:      1,
			FrameDuration: 30,
			Device:        "/tmp/assistant-audio.fifo",
		},
		VAD: VADConfig{
			Sensitivity:       0.3,
			SpeechTimeout:     time.Second,
			SilenceTimeout:    1500 * time.Millisecond,
			CalibrationWindow: 2 * time.Second,
		},
		Connection: ConnectionConfig{
			ServerURL:      "ws://localhost:8000/ws",
			Timeout:        10 * time.Second,
			RetryLimit:     10,
			InitialBackoff: time.Second,
			MaxBackoff:     60 * time.Second,
		},
		Vision: VisionConfig{
			Enabled:  true,
			Cooldown: time.Second,
			MaxWidth: 640,
		},
		Conversation: ConversationConfig{
			MaxHistory: 50,
			Store: StoreConfig{
				Driver: "memory",
			},
		},
	}
}
