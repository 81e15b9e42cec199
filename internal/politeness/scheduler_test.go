package politeness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireEnforcesDelayBetweenRequests(t *testing.T) {
	s := NewScheduler()
	ctx := context.Background()
	delay := 100 * time.Millisecond

	require.NoError(t, s.Acquire(ctx, "example.org", delay))
	s.Release("example.org")

	start := time.Now()
	require.NoError(t, s.Acquire(ctx, "example.org", delay))
	elapsed := time.Since(start)
	s.Release("example.org")

	assert.GreaterOrEqual(t, elapsed, delay, "second acquire must wait out the crawl delay")
}

func TestConcurrentWorkersAreSpaced(t *testing.T) {
	s := NewScheduler()
	ctx := context.Background()
	delay := 50 * time.Millisecond

	var mu sync.Mutex
	var stamps []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Acquire(ctx, "example.org", delay))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
			s.Release("example.org")
		}()
	}
	wg.Wait()

	require.Len(t, stamps, 4)
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(stamps); i++ {
		for j := 0; j < i; j++ {
			gap := stamps[i].Sub(stamps[j])
			if gap < 0 {
				gap = -gap
			}
			assert.GreaterOrEqual(t, gap, delay, "requests %d and %d issued too close together", j, i)
		}
	}
}

func TestDistinctDomainsDoNotBlockEachOther(t *testing.T) {
	s := NewScheduler()
	ctx := context.Background()
	delay := 500 * time.Millisecond

	require.NoError(t, s.Acquire(ctx, "first.org", delay))
	defer s.Release("first.org")

	start := time.Now()
	require.NoError(t, s.Acquire(ctx, "second.org", delay))
	s.Release("second.org")

	assert.Less(t, time.Since(start), delay, "a held permit on one domain must not delay another")
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	s := NewScheduler()
	ctx := context.Background()

	require.NoError(t, s.Acquire(ctx, "example.org", time.Second))

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	err := s.Acquire(cancelCtx, "example.org", time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s.Release("example.org")
}

func TestReleaseWithoutAcquireDoesNotPanic(t *testing.T) {
	s := NewScheduler()
	assert.NotPanics(t, func() { s.Release("example.org") })
}

func TestCleanupInactive(t *testing.T) {
	s := NewScheduler()
	ctx := context.Background()

	require.NoError(t, s.Acquire(ctx, "stale.org", 0))
	s.Release("stale.org")

	require.NoError(t, s.Acquire(ctx, "held.org", 0))
	defer s.Release("held.org")

	time.Sleep(20 * time.Millisecond)

	cleaned := s.CleanupInactive(10 * time.Millisecond)
	assert.Equal(t, 1, cleaned, "only the idle, unheld domain should be cleaned")
}
