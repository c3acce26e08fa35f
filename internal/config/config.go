package config

import "time"

// Config is the root configuration for the danmaku service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Douyin  DouyinConfig  `yaml:"douyin"`
	Signer  SignerConfig  `yaml:"signer"`
	Session SessionConfig `yaml:"session"`
	Buffers BuffersConfig `yaml:"buffers"`
	State   StateConfig   `yaml:"state"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DouyinConfig holds the upstream endpoints and request identity.
type DouyinConfig struct {
	EnterURL  string `yaml:"enter_url"` // room-info endpoint
	PushURL   string `yaml:"push_url"`  // websocket push endpoint
	Cookie    string `yaml:"cookie"`
	UserAgent string `yaml:"user_agent"`
}

// SignerConfig holds the signature SDK settings.
type SignerConfig struct {
	SDKPath     string `yaml:"sdk_path"` // path to the extracted JS bundle
	MaxAttempts int    `yaml:"max_attempts"`
}

// SessionConfig holds per-connection settings.
type SessionConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// BuffersConfig holds in-memory history buffer sizes.
type BuffersConfig struct {
	GlobalSize int `yaml:"global_size"`
	RoomSize   int `yaml:"room_size"`
}

// StateConfig holds the room-list persistence settings.
type StateConfig struct {
	Path string `yaml:"path"` // room file location; empty disables persistence
}
