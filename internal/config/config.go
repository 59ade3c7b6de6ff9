// Package config loads server configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config is the server configuration. DATABASE_URL empty selects the
// in-memory store; REDIS_URL empty disables caching and cross-instance
// event fan-out.
type Config struct {
	Port            string          `env:"PORT"              envDefault:"8080"`
	DatabaseURL     string          `env:"DATABASE_URL"`
	AutoMigrate     bool            `env:"AUTO_MIGRATE"      envDefault:"true"`
	RedisURL        string          `env:"REDIS_URL"`
	CacheTTL        time.Duration   `env:"CACHE_TTL"         envDefault:"30s"`
	EventsChannel   string          `env:"EVENTS_CHANNEL"    envDefault:"rewards:events"`
	LogLevel        slog.Level      `env:"LOG_LEVEL"         envDefault:"INFO"`
	JWTSecret       string          `env:"JWT_SECRET,required,notEmpty"`
	FrontendURL     string          `env:"FRONTEND_URL"      envDefault:"http://localhost:3000"`
	SchedulerSpec   string          `env:"SCHEDULER_SPEC"    envDefault:"@every 1m"`
	AutoDraw        bool            `env:"AUTO_DRAW"         envDefault:"false"`
	TicketPrice     decimal.Decimal `env:"TICKET_PRICE"      envDefault:"100000"`
	SlideLivePayout decimal.Decimal `env:"SLIDE_LIVE_PAYOUT" envDefault:"100000"`
	SlideAutoPayout decimal.Decimal `env:"SLIDE_AUTO_PAYOUT" envDefault:"500000"`
	SlideRoundTTL   time.Duration   `env:"SLIDE_ROUND_TTL"   envDefault:"24h"`
	ShutdownTimeout time.Duration   `env:"SHUTDOWN_TIMEOUT"  envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the server configuration.
func Load() (*Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if !c.TicketPrice.IsPositive() {
		return errors.New("TICKET_PRICE must be positive")
	}
	if c.SlideLivePayout.IsNegative() || c.SlideAutoPayout.IsNegative() {
		return errors.New("slide payouts must not be negative")
	}
	if c.SlideRoundTTL <= 0 {
		return errors.New("SLIDE_ROUND_TTL must be positive")
	}
	if c.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	return nil
}
