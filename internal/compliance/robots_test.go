package compliance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotsCheckCachesPerHost(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte("User-agent: *\nAllow: /\nCrawl-delay: 4\n"))
	}))
	defer server.Close()

	rc := NewRobotsChecker(DefaultRobotsConfig())

	first, err := rc.Check(context.Background(), server.URL)
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 4*time.Second, first.CrawlDelay)

	second, err := rc.Check(context.Background(), server.URL, "/news/story")
	require.NoError(t, err)
	assert.True(t, second.Allowed)

	assert.Equal(t, int64(1), atomic.LoadInt64(&hits), "second check must be served from cache")
}

func TestRobotsCheckDisallowedPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private/\nAllow: /\n"))
	}))
	defer server.Close()

	rc := NewRobotsChecker(DefaultRobotsConfig())

	report, err := rc.Check(context.Background(), server.URL, "/private/archive")
	require.NoError(t, err)
	assert.True(t, report.Reachable)
	assert.False(t, report.Allowed)
}

func TestRobotsCheckNotFoundIsPermissiveButUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	rc := NewRobotsChecker(DefaultRobotsConfig())

	report, err := rc.Check(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, report.Reachable)
	assert.True(t, report.Allowed, "a 404 robots.txt allows everything")
}

func TestRobotsCheckConnectionError(t *testing.T) {
	rc := NewRobotsChecker(&RobotsConfig{
		UserAgent:    "NewsWatch/1.0",
		FetchTimeout: 200 * time.Millisecond,
		CacheTTL:     time.Hour,
	})

	report, err := rc.Check(context.Background(), "http://127.0.0.1:1")
	require.NoError(t, err)
	assert.False(t, report.Reachable)
	assert.False(t, report.Allowed)
}

func TestRobotsCheckInvalidBaseURL(t *testing.T) {
	rc := NewRobotsChecker(DefaultRobotsConfig())
	_, err := rc.Check(context.Background(), "://not-a-url")
	require.Error(t, err)
}

func TestClearExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer server.Close()

	rc := NewRobotsChecker(&RobotsConfig{
		UserAgent:    "NewsWatch/1.0",
		FetchTimeout: time.Second,
		CacheTTL:     10 * time.Millisecond,
	})

	_, err := rc.Check(context.Background(), server.URL)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rc.ClearExpired())
	assert.Equal(t, 0, rc.ClearExpired())
}
