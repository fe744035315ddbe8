package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talent/internal/config"
	"talent/internal/db"
	"talent/internal/handlers"
	"talent/internal/services"
	"talent/internal/session"
	"talent/internal/store"
	"talent/internal/websocket"

	"github.com/go-redis/redis/v8"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD not set, admin login is disabled")
	}
	if cfg.JWTSecret == "" {
		secret, err := config.EphemeralSecret()
		if err != nil {
			logger.Error("failed to generate session secret", "error", err)
			os.Exit(1)
		}
		cfg.JWTSecret = secret
		logger.Warn("JWT_SECRET not set, sessions will not survive a restart")
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = session.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Error("failed to connect redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	} else {
		logger.Warn("REDIS_URL not set, logout will not revoke issued tokens")
	}

	cards := store.NewCardStore(database)
	transactions := store.NewTransactionStore(database)
	booths := store.NewBoothStore(database)
	content := store.NewContentStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	ledger := services.NewLedgerService(txRunner, cards, transactions, audit, hub, logger)
	policy := services.NewPolicy(txRunner, ledger, booths, content, audit, cfg.AdminPassword)
	reports := services.NewReportService(cards, transactions)
	contentService := services.NewContentService(content)
	revocations := session.NewRevocationStore(redisClient)

	handler := handlers.New(cfg, policy, reports, contentService, revocations, hub, logger)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("talent API listening", "addr", server.Addr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Close()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
