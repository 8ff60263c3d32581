//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/superposition/internal/cache"
	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/testsupport"
)

func TestOrphanQueue_Integration(t *testing.T) {
	ctx := context.Background()

	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	queue := cache.NewOrphanQueue(redisCtr.Client, "test:orphans")

	t.Run("Should return nil when the queue stays empty", func(t *testing.T) {
		job, err := queue.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("Should serve jobs in FIFO order", func(t *testing.T) {
		first := contextops.OrphanJob{ID: "job-1", ExperimentID: 1, ContextIDs: []string{"a"}, EnqueuedAt: time.Now().UTC()}
		second := contextops.OrphanJob{ID: "job-2", ExperimentID: 2, ContextIDs: []string{"b", "c"}, Attempts: 3}

		require.NoError(t, queue.Enqueue(ctx, first))
		require.NoError(t, queue.Enqueue(ctx, second))

		testsupport.AssertMetricDelta(t, "superposition_reconciler_queue_depth", nil, 2, func() {
			n, err := queue.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
		})

		got, err := queue.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "job-1", got.ID)
		assert.True(t, first.EnqueuedAt.Equal(got.EnqueuedAt))

		got, err = queue.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, second.ContextIDs, got.ContextIDs)
		assert.Equal(t, 3, got.Attempts)
	})

	t.Run("Should fail on a corrupt payload", func(t *testing.T) {
		require.NoError(t, redisCtr.Client.LPush(ctx, queue.Key(), "not-json").Err())

		_, err := queue.Dequeue(ctx, time.Second)
		assert.ErrorContains(t, err, "failed to decode orphan job")
	})

	t.Run("Should honour context cancellation while blocked", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := queue.Dequeue(cctx, 10*time.Second)
		assert.Error(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestRedisPoolMonitor_Integration(t *testing.T) {
	ctx := context.Background()

	redisCtr, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err)
	defer redisCtr.Terminate(ctx)

	mctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go cache.RunPoolMonitor(mctx, redisCtr.Client, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return testsupport.GetMetricValue(t, "superposition_redis_pool_connections", map[string]string{"state": "total"}) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}
