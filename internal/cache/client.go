package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/superposition/internal/config"
	"github.com/rafaeljc/superposition/internal/logger"
	"github.com/rafaeljc/superposition/internal/observability"
)

// NewRedisClient builds a pooled Redis client and pings it with exponential
// backoff until it answers or PingMaxRetries is exhausted.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	opts := &redis.Options{
		Addr:            cfg.Address(),
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	if cfg.PingBackoff > 0 {
		bo.InitialInterval = cfg.PingBackoff
	}
	tries := uint(max(cfg.PingMaxRetries, 1))
	log := logger.FromContext(ctx)

	_, err := backoff.Retry(ctx, func() (string, error) {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg))
		defer cancel()
		return client.Ping(pingCtx).Result()
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("redis ping failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", next),
			)
		}),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", tries, err)
	}

	log.Info("connected to redis", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
	return client, nil
}

func pingTimeout(cfg *config.RedisConfig) time.Duration {
	if cfg.DialTimeout > 0 {
		return cfg.DialTimeout
	}
	return 5 * time.Second
}

// RunPoolMonitor samples the client's pool statistics into Prometheus gauges
// until ctx is cancelled.
func RunPoolMonitor(ctx context.Context, client *redis.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		recordPoolStats(client.PoolStats())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func recordPoolStats(stats *redis.PoolStats) {
	observability.RedisPoolConnections.WithLabelValues("total").Set(float64(stats.TotalConns))
	observability.RedisPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns))
	observability.RedisPoolConnections.WithLabelValues("stale").Set(float64(stats.StaleConns))
	observability.RedisPoolTimeouts.Set(float64(stats.Timeouts))
}
