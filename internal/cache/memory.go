// Package cache holds the Redis-backed pieces shared by the services (client
// factory, pool metrics, the orphan queue) and the in-process experiment cache.
package cache

import (
	"fmt"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/superposition/internal/experiment"
	"github.com/rafaeljc/superposition/internal/observability"
)

var _ experiment.Cache = (*ExperimentCache)(nil)

// ExperimentCache keeps experiments read by id in memory, bounded in size
// (S3-FIFO eviction) and age. Experiments are immutable once created, so the
// TTL only bounds memory held by cold entries.
type ExperimentCache struct {
	store otter.Cache[int64, *experiment.Experiment]
}

// NewExperimentCache builds a cache holding at most capacity experiments for ttl each.
func NewExperimentCache(capacity int, ttl time.Duration) (*ExperimentCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	store, err := otter.MustBuilder[int64, *experiment.Experiment](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &ExperimentCache{store: store}, nil
}

// Get returns the cached experiment and records a hit or a miss.
func (c *ExperimentCache) Get(id int64) (*experiment.Experiment, bool) {
	exp, ok := c.store.Get(id)
	if ok {
		observability.ExperimentCacheHits.Inc()
	} else {
		observability.ExperimentCacheMisses.Inc()
	}
	return exp, ok
}

// Set stores exp under its id.
func (c *ExperimentCache) Set(exp *experiment.Experiment) {
	if exp == nil {
		return
	}
	c.store.Set(exp.ID, exp)
}

// Del evicts one experiment.
func (c *ExperimentCache) Del(id int64) {
	c.store.Delete(id)
}

// Close stops the cache's background cleanup.
func (c *ExperimentCache) Close() {
	c.store.Close()
}
