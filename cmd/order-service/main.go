package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"appsuite/internal/api"
	"appsuite/internal/auth"
	"appsuite/internal/config"
	"appsuite/internal/server"
	"appsuite/internal/store"
	"appsuite/internal/telemetry"
)

const serviceName = "order-service"

func main() {
	cfg := config.NewConfig("8082")
	slog.SetDefault(telemetry.NewLogger(os.Stdout, cfg.LogLevel, serviceName))

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting Order Service", "port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL, store.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	handler := api.NewOrderHandler(store.NewOrderRepo(pool), store.NewPaymentRepo(pool))
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret, cfg.JWTIssuer)

	r := server.NewRouter(serviceName, pool.Ping, cfg.TrustedProxies...)
	handler.Routes(r, authMiddleware.ValidateToken)

	if err := server.Run(ctx, cfg.Addr(), r); err != nil {
		slog.Error("Server shutdown error", "error", err)
		os.Exit(1)
	}
}
