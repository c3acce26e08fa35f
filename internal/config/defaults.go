package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultShutdownTimeout = 10 * time.Second

	DefaultEnterURL  = "https://live.douyin.com/webcast/room/web/enter/"
	DefaultPushURL   = "wss://webcast3-ws-web-lq.douyin.com/webcast/im/push/v2/"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultSDKPath      = "sdk.js"
	DefaultSignAttempts = 5

	DefaultHeartbeatInterval = 10 * time.Second

	DefaultGlobalBufferSize = 200
	DefaultRoomBufferSize   = 100
)

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Douyin.EnterURL == "" {
		c.Douyin.EnterURL = DefaultEnterURL
	}
	if c.Douyin.PushURL == "" {
		c.Douyin.PushURL = DefaultPushURL
	}
	if c.Douyin.UserAgent == "" {
		c.Douyin.UserAgent = DefaultUserAgent
	}

	if c.Signer.SDKPath == "" {
		c.Signer.SDKPath = DefaultSDKPath
	}
	if c.Signer.MaxAttempts == 0 {
		c.Signer.MaxAttempts = DefaultSignAttempts
	}

	if c.Session.HeartbeatInterval == 0 {
		c.Session.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if c.Buffers.GlobalSize == 0 {
		c.Buffers.GlobalSize = DefaultGlobalBufferSize
	}
	if c.Buffers.RoomSize == 0 {
		c.Buffers.RoomSize = DefaultRoomBufferSize
	}
}
