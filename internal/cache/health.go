package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/superposition/internal/observability"
)

var _ observability.Checker = (*HealthChecker)(nil)

// HealthChecker reports whether the orphan queue's Redis is reachable.
type HealthChecker struct {
	client *redis.Client
}

// NewHealthChecker creates a health checker for client.
func NewHealthChecker(client *redis.Client) *HealthChecker {
	return &HealthChecker{client: client}
}

// Name returns the component name.
func (h *HealthChecker) Name() string {
	return "redis"
}

// Check pings Redis.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return h.client.Ping(ctx).Err()
}
