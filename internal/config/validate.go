package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !strings.HasPrefix(c.Douyin.EnterURL, "http") {
		return errors.New("douyin.enter_url must be an http(s) URL")
	}
	if !strings.HasPrefix(c.Douyin.PushURL, "ws") {
		return errors.New("douyin.push_url must be a ws(s) URL")
	}
	if c.Douyin.Cookie == "" {
		return errors.New("douyin.cookie is required")
	}

	if c.Signer.SDKPath == "" {
		return errors.New("signer.sdk_path is required")
	}
	if c.Signer.MaxAttempts < 1 {
		return errors.New("signer.max_attempts must be >= 1")
	}

	if c.Session.HeartbeatInterval <= 0 {
		return errors.New("session.heartbeat_interval must be positive")
	}

	if c.Buffers.GlobalSize < 1 {
		return errors.New("buffers.global_size must be >= 1")
	}
	if c.Buffers.RoomSize < 1 {
		return errors.New("buffers.room_size must be >= 1")
	}

	return nil
}
