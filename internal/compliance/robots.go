package compliance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
)

// maxRobotsSize caps how much of a robots.txt file is read.
const maxRobotsSize = 64 * 1024

// RobotsReport summarizes what a site's robots.txt says about us.
type RobotsReport struct {
	RobotsURL  string        `json:"robots_url"`
	Reachable  bool          `json:"reachable"`
	Allowed    bool          `json:"allowed"`
	CrawlDelay time.Duration `json:"crawl_delay"`
	FetchedAt  time.Time     `json:"fetched_at"`
}

// RobotsChecker fetches, parses and caches robots.txt per host.
type RobotsChecker struct {
	cache    map[string]*RobotsReport
	cacheMu  sync.RWMutex
	client   *http.Client
	cacheTTL time.Duration
	agent    string
}

// RobotsConfig configures robots.txt checking.
type RobotsConfig struct {
	UserAgent    string        `json:"user_agent"`
	FetchTimeout time.Duration `json:"fetch_timeout"`
	CacheTTL     time.Duration `json:"cache_ttl"`
}

// DefaultRobotsConfig returns sensible defaults.
func DefaultRobotsConfig() *RobotsConfig {
	return &RobotsConfig{
		UserAgent:    "NewsWatch/1.0 (+https://rosalind-labs.io/bot)",
		FetchTimeout: 30 * time.Second,
		CacheTTL:     24 * time.Hour,
	}
}

// NewRobotsChecker creates a robots.txt checker.
func NewRobotsChecker(config *RobotsConfig) *RobotsChecker {
	if config == nil {
		config = DefaultRobotsConfig()
	}
	return &RobotsChecker{
		cache:    make(map[string]*RobotsReport),
		client:   &http.Client{Timeout: config.FetchTimeout},
		cacheTTL: config.CacheTTL,
		agent:    config.UserAgent,
	}
}

// Check evaluates robots.txt for the host of baseURL against the given
// target paths. An unreachable robots.txt yields Reachable=false and is a
// failed check for the caller, never an error: an unreachable policy
// document cannot be assumed permissive.
func (rc *RobotsChecker) Check(ctx context.Context, baseURL string, paths ...string) (*RobotsReport, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	host := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	rc.cacheMu.RLock()
	cached, exists := rc.cache[host]
	rc.cacheMu.RUnlock()

	if exists && time.Since(cached.FetchedAt) < rc.cacheTTL {
		return cached, nil
	}

	report := rc.fetch(ctx, host, paths)

	rc.cacheMu.Lock()
	rc.cache[host] = report
	rc.cacheMu.Unlock()

	return report, nil
}

func (rc *RobotsChecker) fetch(ctx context.Context, host string, paths []string) *RobotsReport {
	robotsURL := host + "/robots.txt"
	report := &RobotsReport{
		RobotsURL: robotsURL,
		FetchedAt: time.Now(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return report
	}
	req.Header.Set("User-Agent", rc.agent)

	resp, err := rc.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("robots_url", robotsURL).Msg("Failed to fetch robots.txt")
		return report
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		log.Warn().Err(err).Str("robots_url", robotsURL).Msg("Failed to read robots.txt")
		return report
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		log.Warn().Err(err).Str("robots_url", robotsURL).Msg("Failed to parse robots.txt")
		return report
	}

	report.Reachable = resp.StatusCode >= 200 && resp.StatusCode < 300

	group := data.FindGroup(rc.agent)
	report.CrawlDelay = group.CrawlDelay

	report.Allowed = true
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	for _, path := range paths {
		if !group.Test(path) {
			report.Allowed = false
			break
		}
	}

	log.Debug().
		Str("robots_url", robotsURL).
		Bool("reachable", report.Reachable).
		Bool("allowed", report.Allowed).
		Dur("crawl_delay", report.CrawlDelay).
		Msg("Robots check completed")

	return report
}

// ClearExpired removes stale entries from the cache and returns how many
// were dropped.
func (rc *RobotsChecker) ClearExpired() int {
	rc.cacheMu.Lock()
	defer rc.cacheMu.Unlock()

	cleared := 0
	for host, report := range rc.cache {
		if time.Since(report.FetchedAt) > rc.cacheTTL {
			delete(rc.cache, host)
			cleared++
		}
	}
	return cleared
}
