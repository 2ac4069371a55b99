package main

import (
	"Linklytics-Backend/internal/analytics"
	"Linklytics-Backend/internal/auth"
	"Linklytics-Backend/internal/cache"
	"Linklytics-Backend/internal/config"
	"Linklytics-Backend/internal/database"
	httphandler "Linklytics-Backend/internal/handler/http"
	"Linklytics-Backend/internal/ratelimit"
	"Linklytics-Backend/internal/repository/postgres"
	"Linklytics-Backend/internal/service"
	"Linklytics-Backend/pkg/logger"
	"Linklytics-Backend/pkg/useragent"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	log.Info("starting linklytics backend", zap.String("env", cfg.Env))

	// Database
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	storage := postgres.New(db, log)

	// Redis backs both the cache and the rate limiter. Unreachable Redis
	// degrades the service instead of stopping it: cold cache, no limiting.
	var (
		appCache cache.Cache
		limiter  *ratelimit.Limiter
	)
	client, err := cache.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, running without cache and rate limiting", zap.Error(err))
		appCache = cache.NewNoop()
	} else {
		appCache = cache.NewRedis(client, log)
		limiter = ratelimit.New(ratelimit.NewRedisCounter(client), cfg.RateLimit.Requests, cfg.RateLimit.Window, log)
	}

	// User-Agent parser
	uaParser, err := useragent.NewParser(cfg.URLShortener.UAPRegexes, log)
	if err != nil {
		log.Fatal("failed to initialize user-agent parser", zap.Error(err))
	}

	// Services
	shortener := service.NewShortener(storage, appCache, cfg.URLShortener.AliasLength, log)
	analyticsService := service.NewAnalytics(storage, appCache, uaParser, cfg.URLShortener.BaseURL, log)

	// Click processor
	processor := analytics.NewProcessor(analyticsService, analytics.Config{
		Workers:         cfg.Analytics.Workers,
		BufferSize:      cfg.Analytics.BufferSize,
		RetryAttempts:   cfg.Analytics.RetryAttempts,
		RetryDelay:      cfg.Analytics.RetryDelay,
		ShutdownTimeout: cfg.Analytics.ShutdownTimeout,
	}, log)
	processor.Start()

	// Auth
	jwtService := auth.NewJWTService(&auth.JWTConfig{
		SecretKey: []byte(cfg.Auth.JWTSecret),
		TokenTTL:  cfg.Auth.TokenTTL,
		Issuer:    "linklytics",
	})
	oauth := auth.NewGoogleOAuth(&cfg.Auth, log)
	authHandler := auth.NewHandler(oauth, jwtService, storage, &cfg.Auth, log)
	authMW := auth.NewMiddleware(jwtService, log)

	// HTTP
	handler := httphandler.NewHandler(
		shortener, analyticsService, authHandler, authMW, limiter,
		storage, appCache, processor, cfg.URLShortener.BaseURL, log,
	)
	server := httphandler.NewServer(&cfg.HTTPServer, handler, log)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Error("http server failed", zap.Error(err))
	case sig := <-stop:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	// Shutdown order: stop accepting requests, drain queued clicks, then
	// close the stores they were writing to.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}

	processor.Stop()

	if client != nil {
		if err := client.Close(); err != nil {
			log.Error("failed to close redis client", zap.Error(err))
		}
	}
	if err := database.Close(db, log); err != nil {
		log.Error("failed to close database", zap.Error(err))
	}

	log.Info("shutdown complete")
}
