package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected port 8080, got %s", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("expected INFO, got %v", cfg.LogLevel)
	}
	if cfg.TicketPrice.String() != "100000" {
		t.Fatalf("expected ticket price 100000, got %s", cfg.TicketPrice)
	}
	if cfg.SlideRoundTTL != 24*time.Hour {
		t.Fatalf("expected 24h round, got %s", cfg.SlideRoundTTL)
	}
	if !cfg.AutoMigrate || cfg.AutoDraw {
		t.Fatalf("unexpected flags: migrate=%v draw=%v", cfg.AutoMigrate, cfg.AutoDraw)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TICKET_PRICE", "2500.50")
	t.Setenv("AUTO_DRAW", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("expected DEBUG, got %v", cfg.LogLevel)
	}
	if cfg.TicketPrice.String() != "2500.5" {
		t.Fatalf("expected 2500.5, got %s", cfg.TicketPrice)
	}
	if !cfg.AutoDraw {
		t.Fatal("expected auto draw")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "parse env:"},
		{"bad level", map[string]string{"JWT_SECRET": "x", "LOG_LEVEL": "LOUD"}, "parse env:"},
		{"zero price", map[string]string{"JWT_SECRET": "x", "TICKET_PRICE": "0"}, "TICKET_PRICE"},
		{"negative payout", map[string]string{"JWT_SECRET": "x", "SLIDE_AUTO_PAYOUT": "-1"}, "payouts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, err)
			}
		})
	}
}
