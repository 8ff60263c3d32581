// Command superposition-context serves the context store REST API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaeljc/superposition/internal/config"
	"github.com/rafaeljc/superposition/internal/contextapi"
	"github.com/rafaeljc/superposition/internal/contextstore"
	"github.com/rafaeljc/superposition/internal/database"
	"github.com/rafaeljc/superposition/internal/httpapi"
	"github.com/rafaeljc/superposition/internal/logger"
	"github.com/rafaeljc/superposition/internal/observability"
	"github.com/rafaeljc/superposition/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Default().Error("context service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App).With(slog.String("service", contextapi.ServiceName))
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	go database.RunPoolMonitor(ctx, pool, cfg.Database.MonitorInterval)

	serverCfg := &cfg.Server.Context
	svc := contextstore.NewService(log, store.NewContextStore(pool), contextstore.Priorities(serverCfg.DimensionPriorities))

	api := contextapi.NewAPIWithConfig(log, svc, serverCfg.APIKeyHash, serverCfg.APIKeyHash == "")
	if serverCfg.APIKeyHash == "" {
		log.Warn("authentication disabled: no API key hash configured")
	}

	obs := observability.NewServer(log, &cfg.Observability, database.NewHealthChecker(pool))
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

	log.Info("context service stopped")
	return runErr
}
