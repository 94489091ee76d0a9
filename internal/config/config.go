// Package config loads and exposes client configuration (TOML).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath     = "clutch.toml"
	DefaultAPIBaseURL     = "http://localhost:8080"
	DefaultAuthBaseURL    = "http://localhost:8081"
	DefaultWSURL          = "ws://localhost:8080/ws"
	DefaultHistoryLimit   = 50
	DefaultTypingInterval = "3s"
	DefaultMaxBackoff     = "30s"
	DefaultCachePath      = "clutch.db"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
)

// Config is the root client configuration loaded from TOML.
type Config struct {
	Log       LogConfig       `toml:"log"`
	API       APIConfig       `toml:"api"`
	Chat      ChatConfig      `toml:"chat"`
	Cache     CacheConfig     `toml:"cache"`
	Reconnect ReconnectConfig `toml:"reconnect"`
}

// LogConfig holds logging level and format ("console" or "json").
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// APIConfig holds the collaborator endpoints. Token is only settable via
// the CLUTCH_TOKEN environment variable and takes precedence over the
// cached login token.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	AuthURL string `toml:"auth_url"`
	WSURL   string `toml:"ws_url"`
	Token   string `toml:"-"`
}

// ChatConfig holds delivery tuning.
type ChatConfig struct {
	HistoryLimit   int    `toml:"history_limit"`
	TypingInterval string `toml:"typing_interval"`
}

// CacheConfig holds the local cache location.
type CacheConfig struct {
	Path string `toml:"path"`
}

// ReconnectConfig holds the transport recovery policy.
type ReconnectConfig struct {
	Enabled     bool   `toml:"enabled"`
	MaxInterval string `toml:"max_interval"`
}

// Load reads the config at path, fills defaults, and applies environment
// overrides (CLUTCH_API_URL, CLUTCH_AUTH_URL, CLUTCH_WS_URL, CLUTCH_TOKEN).
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.AuthURL == "" {
		c.API.AuthURL = DefaultAuthBaseURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = DefaultHistoryLimit
	}
	if c.Chat.TypingInterval == "" {
		c.Chat.TypingInterval = DefaultTypingInterval
	}
	if c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath
	}
	if c.Reconnect.MaxInterval == "" {
		c.Reconnect.MaxInterval = DefaultMaxBackoff
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CLUTCH_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("CLUTCH_AUTH_URL"); v != "" {
		c.API.AuthURL = v
	}
	if v := os.Getenv("CLUTCH_WS_URL"); v != "" {
		c.API.WSURL = v
	}
	if v := os.Getenv("CLUTCH_TOKEN"); v != "" {
		c.API.Token = v
	}
}

// TypingInterval parses the configured typing throttle interval.
func (c *Config) TypingInterval() time.Duration {
	d, err := time.ParseDuration(c.Chat.TypingInterval)
	if err != nil {
		d, _ = time.ParseDuration(DefaultTypingInterval)
	}
	return d
}

// MaxBackoff parses the configured reconnect backoff cap.
func (c *Config) MaxBackoff() time.Duration {
	d, err := time.ParseDuration(c.Reconnect.MaxInterval)
	if err != nil {
		d, _ = time.ParseDuration(DefaultMaxBackoff)
	}
	return d
}
