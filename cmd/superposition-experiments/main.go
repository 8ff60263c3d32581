// Command superposition-experiments serves the experimentation REST API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaeljc/superposition/internal/cache"
	"github.com/rafaeljc/superposition/internal/config"
	"github.com/rafaeljc/superposition/internal/contextclient"
	"github.com/rafaeljc/superposition/internal/database"
	"github.com/rafaeljc/superposition/internal/experiment"
	"github.com/rafaeljc/superposition/internal/experimentapi"
	"github.com/rafaeljc/superposition/internal/httpapi"
	"github.com/rafaeljc/superposition/internal/logger"
	"github.com/rafaeljc/superposition/internal/observability"
	"github.com/rafaeljc/superposition/internal/snowflake"
	"github.com/rafaeljc/superposition/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Default().Error("experiments service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App).With(slog.String("service", experimentapi.ServiceName))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids, err := snowflake.NewFromHostname(cfg.Snowflake.Hostname, snowflakeOptions(&cfg.Snowflake)...)
	if err != nil {
		return err
	}

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	go database.RunPoolMonitor(ctx, pool, cfg.Database.MonitorInterval)

	redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	go cache.RunPoolMonitor(ctx, redisClient, cfg.Redis.MonitorInterval)

	experimentCache, err := cache.NewExperimentCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	if err != nil {
		return err
	}
	defer experimentCache.Close()

	svc := experiment.NewService(log,
		ids,
		contextclient.New(&cfg.ContextStore),
		store.NewExperimentStore(pool),
		cache.NewOrphanQueue(redisClient, cfg.Reconciler.QueueKey),
		experiment.WithCache(experimentCache),
		experiment.WithConflictPolicy(experiment.ConflictPolicy{
			AllowSameKeysOverlappingContext:    cfg.Experimentation.AllowSameKeysOverlappingCtx,
			AllowDiffKeysOverlappingContext:    cfg.Experimentation.AllowDiffKeysOverlappingCtx,
			AllowSameKeysNonOverlappingContext: cfg.Experimentation.AllowSameKeysNonOverlappingCtx,
		}),
	)

	serverCfg := &cfg.Server.Experiments
	api := experimentapi.NewAPIWithConfig(log, svc, serverCfg.APIKeyHash, serverCfg.APIKeyHash == "")
	if serverCfg.APIKeyHash == "" {
		log.Warn("authentication disabled: no API key hash configured")
	}

	obs := observability.NewServer(log, &cfg.Observability,
		database.NewHealthChecker(pool),
		cache.NewHealthChecker(redisClient),
	)
	obs.Start()

	server := httpapi.NewServer(log, &serverCfg.HTTPServerConfig, serverCfg.Port, api.Router)
	serveErr := server.Start()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", slog.String("error", err.Error()))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("observability server shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("experiments service stopped")
	return runErr
}

func snowflakeOptions(cfg *config.SnowflakeConfig) []snowflake.Option {
	if cfg.Epoch.IsZero() {
		return nil
	}
	return []snowflake.Option{snowflake.WithEpoch(cfg.Epoch)}
}
