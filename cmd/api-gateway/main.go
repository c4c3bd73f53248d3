package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"appsuite/internal/api"
	"appsuite/internal/auth"
	"appsuite/internal/cache"
	"appsuite/internal/config"
	"appsuite/internal/ratelimit"
	"appsuite/internal/server"
	"appsuite/internal/services"
	"appsuite/internal/telemetry"
)

const serviceName = "api-gateway"

func main() {
	cfg := config.NewConfig("8080")
	slog.SetDefault(telemetry.NewLogger(os.Stdout, cfg.LogLevel, serviceName))

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting API Gateway", "port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *cache.Client
	if cfg.RedisAddr != "" {
		var err error
		redisClient, err = cache.NewClient(cfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("Connected to Redis", "addr", cfg.RedisAddr)
	}

	serviceClient := services.NewServiceClient(cfg)
	telemetry.TrackBreaker(serviceClient.PopularBreaker(), "popular-products")

	handler := api.NewHandler(
		serviceClient,
		redisClient,
		cfg.CacheTTL,
		ratelimit.New(ctx, redisClient, "gateway", cfg.RateLimitPerMinute),
	)
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret, cfg.JWTIssuer)

	r := server.NewRouter(serviceName, redisClient.Ping, cfg.TrustedProxies...)
	handler.Routes(r, authMiddleware.ValidateToken)

	if err := server.Run(ctx, cfg.Addr(), r); err != nil {
		slog.Error("Server shutdown error", "error", err)
		os.Exit(1)
	}
}
