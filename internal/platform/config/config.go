package config

import "time"

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Audio        AudioConfig        `yaml:"audio"`
	VAD          VADConfig          `yaml:"vad"`
	Connection   ConnectionConfig   `yaml:"connection"`
	Vision       VisionConfig       `yaml:"vision"`
	Conversation ConversationConfig `yaml:"conversation"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type AudioConfig struct {
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	FrameDuration int    `yaml:"frame_duration"` // milliseconds
	Device        string `yaml:"device"`
}

type VADConfig struct {
	Sensitivity       float64       `yaml:"sensitivity"` // 0.0-1.0 user factor
	SpeechTimeout     time.Duration `yaml:"speech_timeout"`
	SilenceTimeout    time.Duration `yaml:"silence_timeout"`
	CalibrationWindow time.Duration `yaml:"calibration_window"`
}

type ConnectionConfig struct {
	ServerURL      string        `yaml:"server_url"`
	Timeout        time.Duration `yaml:"timeout"`
	RetryLimit     int           `yaml:"retry_limit"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type VisionConfig struct {
	Enabled     bool          `yaml:"enabled"`
	SnapshotURL string        `yaml:"snapshot_url"`
	Cooldown    time.Duration `yaml:"cooldown"`
	MaxWidth    int           `yaml:"max_width"`
}

type ConversationConfig struct {
	MaxHistory int         `yaml:"max_history"`
	Store      StoreConfig `yaml:"store"`
}

type StoreConfig struct {
	Driver string            `yaml:"driver"` // memory | sqlite | redis
	SQLite SQLiteStoreConfig `yaml:"sqlite,omitempty"`
	Redis  RedisStoreConfig  `yaml:"redis,omitempty"`
}

type SQLiteStoreConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}
