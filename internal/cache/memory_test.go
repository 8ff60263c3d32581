package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/superposition/internal/cache"
	"github.com/rafaeljc/superposition/internal/experiment"
	"github.com/rafaeljc/superposition/internal/testsupport"
)

func TestExperimentCache_GetSet(t *testing.T) {
	c, err := cache.NewExperimentCache(100, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	t.Run("Should record a miss for an unknown id", func(t *testing.T) {
		testsupport.AssertMetricDelta(t, "superposition_experiments_cache_misses_total", nil, 1, func() {
			_, found := c.Get(404)
			assert.False(t, found)
		})
	})

	t.Run("Should record a hit for a stored experiment", func(t *testing.T) {
		c.Set(&experiment.Experiment{ID: 7, Name: "exp1"})

		testsupport.AssertMetricDelta(t, "superposition_experiments_cache_hits_total", nil, 1, func() {
			got, found := c.Get(7)
			require.True(t, found)
			assert.Equal(t, "exp1", got.Name)
		})
	})

	t.Run("Should ignore nil experiments", func(t *testing.T) {
		assert.NotPanics(t, func() { c.Set(nil) })
	})

	t.Run("Should forget deleted experiments", func(t *testing.T) {
		c.Set(&experiment.Experiment{ID: 8})
		c.Del(8)

		_, found := c.Get(8)
		assert.False(t, found)
	})
}

func TestExperimentCache_ExpiresEntries(t *testing.T) {
	c, err := cache.NewExperimentCache(10, 50*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	c.Set(&experiment.Experiment{ID: 1})

	require.Eventually(t, func() bool {
		_, found := c.Get(1)
		return !found
	}, 2*time.Second, 20*time.Millisecond)
}

func TestExperimentCache_ConcurrentAccess(t *testing.T) {
	c, err := cache.NewExperimentCache(1000, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				id := int64(w*1000 + i)
				c.Set(&experiment.Experiment{ID: id, Name: fmt.Sprint(id)})
				c.Get(id)
			}
		}()
	}
	wg.Wait()
}

func TestNewExperimentCache_RejectsInvalidCapacity(t *testing.T) {
	_, err := cache.NewExperimentCache(0, time.Minute)
	assert.ErrorContains(t, err, "capacity must be positive")
}
