package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rosalind-labs/newswatch/internal/politeness"
	"github.com/rosalind-labs/newswatch/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolProcessesAllJobsAndCloses(t *testing.T) {
	var canonical string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(replaceCanonical(articlePage, canonical+r.URL.Path)))
	}))
	defer server.Close()
	canonical = server.URL

	ms := store.NewMemoryStore()
	executor := NewExecutor(NewFetcher(nil), politeness.NewScheduler(), ms, fastRetryPolicy(), nil, nil)
	pool := NewPool(executor, &PoolConfig{Workers: 3, QueueSize: 8})

	ctx := context.Background()
	pool.Start(ctx)

	src := sourceForServer(t, server.URL)
	require.NoError(t, ms.CreateSource(ctx, src))
	strategy := genericTestStrategy(src.ID)

	const jobs = 5
	for i := 0; i < jobs; i++ {
		require.NoError(t, pool.Submit(ctx, Job{
			Source:   src,
			Strategy: strategy,
			PageURL:  fmt.Sprintf("%s/story-%d", server.URL, i),
		}))
	}

	done := make(chan struct{})
	results := make([]Result, 0, jobs)
	go func() {
		for r := range pool.Results() {
			results = append(results, r)
		}
		close(done)
	}()

	pool.Stop()
	<-done

	require.Len(t, results, jobs)
	succeeded := 0
	for _, r := range results {
		if r.Outcome.State == StateSucceeded {
			succeeded++
		}
	}
	// Identical page bodies dedup down to one stored article; the
	// canonical URLs differ, so the content hash decides.
	assert.Equal(t, 1, succeeded)

	count, err := ms.CountArticles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPoolSubmitRacingStopFailsCleanly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer server.Close()

	ms := store.NewMemoryStore()
	executor := NewExecutor(NewFetcher(nil), politeness.NewScheduler(), ms, fastRetryPolicy(), nil, nil)
	pool := NewPool(executor, &PoolConfig{Workers: 2, QueueSize: 2})

	ctx := context.Background()
	pool.Start(ctx)

	src := sourceForServer(t, server.URL)
	require.NoError(t, ms.CreateSource(ctx, src))
	strategy := genericTestStrategy(src.ID)

	drained := make(chan struct{})
	go func() {
		for range pool.Results() {
		}
		close(drained)
	}()

	// Submitters hammer the queue while Stop closes it; a submit that
	// loses the race must return the stopped error, never panic on the
	// closed channel.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := pool.Submit(ctx, Job{Source: src, Strategy: strategy, PageURL: server.URL + "/gone"})
				if err != nil {
					return
				}
			}
		}()
	}

	pool.Stop()
	wg.Wait()
	<-drained
}

func TestPoolSubmitAfterStopFails(t *testing.T) {
	ms := store.NewMemoryStore()
	executor := NewExecutor(NewFetcher(nil), politeness.NewScheduler(), ms, fastRetryPolicy(), nil, nil)
	pool := NewPool(executor, nil)

	pool.Start(context.Background())
	pool.Stop()

	err := pool.Submit(context.Background(), Job{})
	require.Error(t, err)
}
