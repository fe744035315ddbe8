package main

import (
	"context"
	"log/slog"
	"os"

	"talent/internal/config"
	"talent/internal/db"
	"talent/internal/migrate"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	dir := "migrations"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	applied, err := migrate.Up(context.Background(), database, dir, logger)
	if err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "applied", len(applied))
}
