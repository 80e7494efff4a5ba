package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"` // optional; enables cross-process event relay
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// DefaultHeartbeatPeriod is assigned to displays on auto-registration.
	DefaultHeartbeatPeriod time.Duration `env:"DEFAULT_HEARTBEAT_PERIOD" default:"60s"`

	// FeedFetchTimeout bounds a single remote calendar fetch. Must stay
	// below the page request timeout so a hung remote server cannot wedge
	// the slide renderer.
	FeedFetchTimeout time.Duration `env:"FEED_FETCH_TIMEOUT" default:"10s"`

	// DefaultFeedStaleness is used when a slide does not configure its own
	// staleness window.
	DefaultFeedStaleness time.Duration `env:"DEFAULT_FEED_STALENESS" default:"5m"`

	// PushSendBuffer is the per-connection outbound event buffer. A client
	// that falls this far behind is evicted.
	PushSendBuffer int `env:"PUSH_SEND_BUFFER" default:"16"`

	// PushPingInterval controls keep-alive frames on push connections.
	PushPingInterval time.Duration `env:"PUSH_PING_INTERVAL" default:"30s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.DefaultHeartbeatPeriod <= 0 {
		return fmt.Errorf("DEFAULT_HEARTBEAT_PERIOD must be positive")
	}
	if cfg.FeedFetchTimeout <= 0 {
		return fmt.Errorf("FEED_FETCH_TIMEOUT must be positive")
	}
	if cfg.PushSendBuffer < 1 {
		return fmt.Errorf("PUSH_SEND_BUFFER must be at least 1")
	}
	return nil
}
