package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 0.5, cfg.Compliance.MinScore)
	assert.InDelta(t, 1.0,
		cfg.Compliance.RobotsWeight+cfg.Compliance.CrawlDelayWeight+
			cfg.Compliance.TermsWeight+cfg.Compliance.LegalContactWeight+
			cfg.Compliance.FairUseWeight,
		1e-9, "check weights must sum to 1.0")
	assert.Equal(t, 5, cfg.Crawl.FailureThreshold)
	assert.Equal(t, 15, cfg.Crawl.MaintenanceIntervalMinutes)
	assert.Equal(t, 720, cfg.Revalidation.IntervalHours)
	assert.Equal(t, 30, cfg.Crawl.FetchTimeoutSeconds)
	assert.Equal(t, 3, cfg.Crawl.RetryMaxAttempts)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadOverlaysFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newswatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
crawl:
  workers: 8
  failure_threshold: 3
`), 0644))

	t.Setenv("PORT", "7070")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port, "env overrides the file")
	assert.Equal(t, 8, cfg.Crawl.Workers)
	assert.Equal(t, 3, cfg.Crawl.FailureThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.5, cfg.Compliance.MinScore)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: a map"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestComponentConfigBuilders(t *testing.T) {
	cfg := Default()
	cfg.Crawl.FetchTimeoutSeconds = 10
	cfg.Revalidation.IntervalHours = 24

	assert.Equal(t, 10*time.Second, cfg.ValidatorConfig().FetchTimeout)
	assert.Equal(t, 10*time.Second, cfg.FetcherConfig().Timeout)
	assert.Equal(t, 24*time.Hour, cfg.RevalidationSchedulerConfig().Interval)
	assert.Equal(t, 5, cfg.ExecutorConfig().FailureThreshold)
	assert.Equal(t, time.Hour, cfg.EngineConfig().CrawlInterval)
	assert.Equal(t, 15*time.Minute, cfg.EngineConfig().MaintenanceInterval)
}
