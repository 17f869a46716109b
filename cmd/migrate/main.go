package main

import (
	"context"
	"log/slog"
	"os"

	"storefront/internal/infra/migrate"
	"storefront/internal/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := migrate.Apply(context.Background(), cfg.DB); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations applied")
}
