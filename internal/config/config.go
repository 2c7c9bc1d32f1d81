// Package config defines runtime configuration for the relay, loaded from
// environment variables with sensible defaults for local development.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ModerationPolicy controls which connections may issue host-mute/host-kick.
type ModerationPolicy string

const (
	// ModerationOpen lets any connection moderate. This mirrors the trust
	// model of the original client convention where "host" is a UI role the
	// server never verifies.
	ModerationOpen ModerationPolicy = "open"
	// ModerationDisabled refuses all moderation events.
	ModerationDisabled ModerationPolicy = "disabled"
)

// RateLimitConfig defines per-connection inbound event throttling.
type RateLimitConfig struct {
	Burst          int           `envconfig:"RATE_LIMIT_BURST" default:"20"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
}

// Config holds all server settings.
type Config struct {
	ListenAddr       string        `envconfig:"LISTEN_ADDR" default:":3000"`
	AllowedOrigins   []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
	MaxMessageSize   int64         `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	SendQueueSize    int           `envconfig:"SEND_QUEUE_SIZE" default:"256"`
	UploadDir        string        `envconfig:"UPLOAD_DIR" default:"uploads"`
	ValidateUploads  bool          `envconfig:"VALIDATE_UPLOADS" default:"false"`
	ModerationPolicy string        `envconfig:"MODERATION_POLICY" default:"open"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RateLimit        RateLimitConfig
}

// New returns a Config populated with defaults only.
func New() *Config {
	cfg := &Config{}
	// envconfig applies struct defaults when the variables are unset; an
	// empty prefix with a clean environment yields pure defaults.
	if err := envconfig.Process("", cfg); err != nil {
		// Defaults alone cannot fail to parse.
		panic(err)
	}
	return cfg
}

// Load reads configuration from the environment, falling back to defaults
// for anything unset, and sanitizes the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.sanitize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) sanitize() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":3000"
	}
	if !strings.Contains(c.ListenAddr, ":") {
		c.ListenAddr = ":" + c.ListenAddr
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 20
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	switch ModerationPolicy(c.ModerationPolicy) {
	case ModerationOpen, ModerationDisabled:
	case "":
		c.ModerationPolicy = string(ModerationOpen)
	default:
		return fmt.Errorf("invalid MODERATION_POLICY %q", c.ModerationPolicy)
	}
	return nil
}

// Moderation returns the configured moderation policy.
func (c *Config) Moderation() ModerationPolicy {
	return ModerationPolicy(c.ModerationPolicy)
}

// SlogLevel maps the configured log level name to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
