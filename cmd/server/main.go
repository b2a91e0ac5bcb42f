package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/likelovehate/internal/adapter/filestore"
	"github.com/pscheid92/likelovehate/internal/adapter/httpserver"
	"github.com/pscheid92/likelovehate/internal/adapter/metrics"
	"github.com/pscheid92/likelovehate/internal/adapter/postgres"
	"github.com/pscheid92/likelovehate/internal/adapter/redis"
	"github.com/pscheid92/likelovehate/internal/app"
	"github.com/pscheid92/likelovehate/internal/domain"
	"github.com/pscheid92/likelovehate/internal/platform/config"
	"github.com/pscheid92/likelovehate/internal/platform/logging"
	"github.com/pscheid92/likelovehate/internal/platform/retry"
	"github.com/pscheid92/likelovehate/internal/platform/version"
)

const connectTimeout = 60 * time.Second

// backend is the selected store plus what the server needs around it.
type backend struct {
	store        domain.ReactionStore
	healthChecks []httpserver.HealthCheck
	close        func()
}

func runGracefulShutdown(srv *httpserver.Server, timeout time.Duration) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, draining requests...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func logRetry(target string) func(int, error, time.Duration) {
	return func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Backend not reachable yet, retrying", "backend", target, "attempt", attempt, "backoff", backoff, "error", err)
	}
}

func setupFileStore(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) backend {
	store, err := filestore.Open(cfg.DataPath(), clock, metrics.NewStoreMetrics(reg))
	if err != nil {
		slog.Error("Failed to open reaction data file", "path", cfg.DataPath(), "error", err)
		os.Exit(1)
	}
	slog.Info("File store ready", "path", store.Path(), "records", store.Len(), "dropped", store.Dropped())

	return backend{
		store:        store,
		healthChecks: []httpserver.HealthCheck{{Name: "data_dir", Check: store.HealthCheck}},
		close:        func() {},
	}
}

func setupPostgres(cfg *config.Config, clock clockwork.Clock, bm *metrics.BackendMetrics) backend {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	policy := retry.StartupPolicy()
	policy.OnRetry = logRetry(config.BackendPostgres)
	pool, err := retry.Do(ctx, policy, retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, bm)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	store := postgres.NewReactionStore(pool, clock)
	return backend{
		store:        store,
		healthChecks: []httpserver.HealthCheck{{Name: "postgres", Check: store.HealthCheck}},
		close:        pool.Close,
	}
}

func setupRedis(cfg *config.Config, clock clockwork.Clock, bm *metrics.BackendMetrics) backend {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	policy := retry.StartupPolicy()
	policy.OnRetry = logRetry(config.BackendRedis)
	client, err := retry.Do(ctx, policy, retry.Transient, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, bm)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	store := redis.NewReactionStore(client, clock)
	return backend{
		store:        store,
		healthChecks: []httpserver.HealthCheck{{Name: "redis", Check: store.HealthCheck}},
		close:        func() { _ = client.Close() },
	}
}

func setupBackend(cfg *config.Config, clock clockwork.Clock, reg prometheus.Registerer) backend {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return setupPostgres(cfg, clock, metrics.NewBackendMetrics(reg))
	case config.BackendRedis:
		return setupRedis(cfg, clock, metrics.NewBackendMetrics(reg))
	default:
		return setupFileStore(cfg, clock, reg)
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"backend", cfg.StoreBackend,
		"version", version.Get().Version)

	registry := metrics.NewRegistry()

	be := setupBackend(cfg, clock, registry)
	defer be.close()

	appSvc := app.NewService(be.store, cfg.Colors(), cfg.EnableActivityLog, metrics.NewReactionMetrics(registry))
	srv := httpserver.NewServer(cfg, appSvc, registry, be.healthChecks)

	done := runGracefulShutdown(srv, cfg.ShutdownTimeout)

	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
