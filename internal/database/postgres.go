// Package database provides the PostgreSQL connection factory shared by the
// experiments and context-store services.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/superposition/internal/config"
	"github.com/rafaeljc/superposition/internal/observability"
)

// NewPostgresPool builds a pool from cfg and pings it, retrying with
// exponential backoff so services tolerate a database that starts late.
func NewPostgresPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config cannot be nil")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pingWithRetry(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}

	slog.Default().Info("connected to postgres",
		slog.Int("max_conns", cfg.MaxConns),
		slog.Int("min_conns", cfg.MinConns),
	)
	return pool, nil
}

func pingWithRetry(ctx context.Context, pool *pgxpool.Pool, cfg *config.DatabaseConfig) error {
	bo := backoff.NewExponentialBackOff()
	if cfg.PingBackoff > 0 {
		bo.InitialInterval = cfg.PingBackoff
	}

	tries := uint(cfg.PingMaxRetries)
	if tries == 0 {
		tries = 1
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg))
		defer cancel()
		return struct{}{}, pool.Ping(pingCtx)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Default().Warn("postgres ping failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", next),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to ping database after %d attempts: %w", tries, err)
	}
	return nil
}

func pingTimeout(cfg *config.DatabaseConfig) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return 5 * time.Second
}

// RunPoolMonitor samples pool statistics into Prometheus gauges until ctx is cancelled.
func RunPoolMonitor(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		recordPoolStats(pool.Stat())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func recordPoolStats(stat *pgxpool.Stat) {
	observability.DBPoolConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
	observability.DBPoolConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	observability.DBPoolConnections.WithLabelValues("in_use").Set(float64(stat.AcquiredConns()))
	observability.DBPoolConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))
	observability.DBPoolAcquireCount.Set(float64(stat.AcquireCount()))
	observability.DBPoolAcquireDuration.Set(stat.AcquireDuration().Seconds())
	observability.DBPoolWaitCount.Set(float64(stat.EmptyAcquireCount()))
}
