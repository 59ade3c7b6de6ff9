// Command migrator applies the database schema migrations and exits.
package main

import (
	"log/slog"
	"os"

	"github.com/luckyspin/rewards-engine/internal/config"
	"github.com/luckyspin/rewards-engine/internal/store"
)

type migratorConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	var cfg migratorConfig
	if err := config.ParseEnv(&cfg); err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("migrate", "err", err)
		os.Exit(1)
	}
	slog.Info("migrations applied")
}
