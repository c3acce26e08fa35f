package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config, applies the DANMAKU_* environment overlay,
// and fills in default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies the environment overlay and
// defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// envOverlay carries the settings that may be overridden per deployment
// without editing the config file.
type envOverlay struct {
	Port      int    `envconfig:"PORT"`
	Cookie    string `envconfig:"COOKIE"`
	UserAgent string `envconfig:"USER_AGENT"`
	SDKPath   string `envconfig:"SDK_PATH"`
	StatePath string `envconfig:"STATE_PATH"`
}

func (c *Config) applyEnv() error {
	var env envOverlay
	if err := envconfig.Process("danmaku", &env); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}

	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.Cookie != "" {
		c.Douyin.Cookie = env.Cookie
	}
	if env.UserAgent != "" {
		c.Douyin.UserAgent = env.UserAgent
	}
	if env.SDKPath != "" {
		c.Signer.SDKPath = env.SDKPath
	}
	if env.StatePath != "" {
		c.State.Path = env.StatePath
	}
	return nil
}
