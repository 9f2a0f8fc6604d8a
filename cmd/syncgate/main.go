package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/pivotdata/syncgate/internal/config"
	"github.com/pivotdata/syncgate/internal/license"
	"github.com/pivotdata/syncgate/internal/quota"
	"github.com/pivotdata/syncgate/internal/ratelimit"
	"github.com/pivotdata/syncgate/internal/server"
	"github.com/pivotdata/syncgate/internal/telemetry"
	"github.com/pivotdata/syncgate/internal/validate"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := os.Getenv("SYNCGATE_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("syncgate", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize counter store: %v", err)
	}
	defer cleanup()

	limiter := ratelimit.NewLimiter(store,
		ratelimit.WithWindow(cfg.RateLimit.Window()),
		ratelimit.WithStoreTimeout(cfg.RateLimit.StoreTimeout()),
	)
	resolver := quota.NewResolver(cfg.RateLimit.TierLimits())

	entries, err := cfg.LicenseEntries()
	if err != nil {
		log.Fatalf("Failed to load license entries: %v", err)
	}
	verifier := license.NewStaticVerifier(entries)

	admission := server.NewAdmission(limiter, resolver, server.FailPolicy(cfg.RateLimit.FailPolicy), logger)
	validator := validate.NewValidator(validate.DefaultRules())

	srv := server.New(cfg.Server.Port, time.Duration(cfg.Server.TimeoutSeconds)*time.Second, logger, verifier)
	srv.MountSyncRoutes(admission, validator, placeholderHandler())

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	logger.Info("syncgate started",
		slog.Int("port", cfg.Server.Port),
		slog.String("store", cfg.Store.Type),
		slog.String("fail_policy", cfg.RateLimit.FailPolicy),
		slog.Int("window_seconds", cfg.RateLimit.WindowSeconds),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildStore constructs the configured counter store and a cleanup
// function for process exit.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ratelimit.CounterStore, func(), error) {
	switch cfg.Store.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		return ratelimit.NewRedisStore(client), func() { _ = client.Close() }, nil

	case "sqlite":
		store, err := ratelimit.NewSQLiteStore(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		go purgeLoop(ctx, store, cfg.RateLimit.Window(), logger)
		return store, func() { _ = store.Close() }, nil

	case "memory":
		logger.Warn("using in-memory counter store; limits are per-instance")
		return ratelimit.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, errors.New("unknown store type: " + cfg.Store.Type)
	}
}

// purgeLoop reclaims expired counter rows once per window.
func purgeLoop(ctx context.Context, store *ratelimit.SQLiteStore, window time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.PurgeExpired(ctx); err != nil {
				logger.Error("counter purge failed", slog.String("error", err.Error()))
			}
		}
	}
}

// placeholderHandler stands in for the business API behind the admission
// pipeline. Real deployments mount their own handler.
func placeholderHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}
