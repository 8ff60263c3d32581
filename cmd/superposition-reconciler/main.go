// Command superposition-reconciler removes contexts orphaned by failed
// experiment creations.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rafaeljc/superposition/internal/cache"
	"github.com/rafaeljc/superposition/internal/config"
	"github.com/rafaeljc/superposition/internal/contextclient"
	"github.com/rafaeljc/superposition/internal/logger"
	"github.com/rafaeljc/superposition/internal/observability"
	"github.com/rafaeljc/superposition/internal/reconciler"
)

func main() {
	if err := run(); err != nil {
		slog.Default().Error("reconciler failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App).With(slog.String("service", "reconciler"))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	obs := observability.NewServer(log, &cfg.Observability, cache.NewHealthChecker(redisClient))
	obs.Start()

	worker := reconciler.New(log,
		cfg.Reconciler,
		cache.NewOrphanQueue(redisClient, cfg.Reconciler.QueueKey),
		contextclient.New(&cfg.ContextStore),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cache.RunPoolMonitor(gctx, redisClient, cfg.Redis.MonitorInterval)
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("observability server shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("reconciler stopped")
	return runErr
}
