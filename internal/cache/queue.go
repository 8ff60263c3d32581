package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/experiment"
	"github.com/rafaeljc/superposition/internal/observability"
	"github.com/rafaeljc/superposition/internal/validation"
)

var _ experiment.OrphanQueue = (*OrphanQueue)(nil)

// OrphanQueue is a FIFO of orphan cleanup jobs stored as JSON in a Redis list.
// Producers LPUSH, the reconciler BRPOPs, so the oldest job is served first.
type OrphanQueue struct {
	client *redis.Client
	key    string
}

// NewOrphanQueue returns a queue backed by the list at key.
func NewOrphanQueue(client *redis.Client, key string) *OrphanQueue {
	validation.AssertNotNil(client, "redis client")
	if key == "" {
		panic("cache: orphan queue key cannot be empty")
	}
	return &OrphanQueue{client: client, key: key}
}

// Key returns the Redis list name.
func (q *OrphanQueue) Key() string {
	return q.key
}

// Enqueue appends job to the queue.
func (q *OrphanQueue) Enqueue(ctx context.Context, job contextops.OrphanJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode orphan job %s: %w", job.ID, err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue orphan job %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the oldest job. It returns (nil, nil) when
// the queue stayed empty.
func (q *OrphanQueue) Dequeue(ctx context.Context, timeout time.Duration) (*contextops.OrphanJob, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop orphan job: %w", err)
	}

	// BRPOP answers [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}

	var job contextops.OrphanJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to decode orphan job: %w", err)
	}
	return &job, nil
}

// Len reports the number of pending jobs and publishes it as a gauge.
func (q *OrphanQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read orphan queue length: %w", err)
	}
	observability.OrphanQueueDepth.Set(float64(n))
	return n, nil
}
