// Package config loads the newswatch.yaml file, applies environment
// overrides and builds the per-component configuration structs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rosalind-labs/newswatch/internal/compliance"
	"github.com/rosalind-labs/newswatch/internal/engine"
	"github.com/rosalind-labs/newswatch/internal/revalidation"
	"github.com/rosalind-labs/newswatch/internal/scrape"
	"github.com/rosalind-labs/newswatch/pkg/logging"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        string `yaml:"port"`
	CORSOrigins string `yaml:"cors_origins"`
}

// StoreConfig selects the persistence backend. An empty DSN runs the
// in-memory store.
type StoreConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// TemporalConfig configures the optional durable pipeline.
type TemporalConfig struct {
	Enabled   bool   `yaml:"enabled"`
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

// ComplianceConfig configures validation scoring.
type ComplianceConfig struct {
	MinScore             float64 `yaml:"min_score"`
	RobotsWeight         float64 `yaml:"robots_weight"`
	CrawlDelayWeight     float64 `yaml:"crawl_delay_weight"`
	TermsWeight          float64 `yaml:"terms_weight"`
	LegalContactWeight   float64 `yaml:"legal_contact_weight"`
	FairUseWeight        float64 `yaml:"fair_use_weight"`
	VerifyTermsReachable bool    `yaml:"verify_terms_reachable"`
	RobotsCacheTTLHours  int     `yaml:"robots_cache_ttl_hours"`
	UserAgent            string  `yaml:"user_agent"`
}

// CrawlConfig configures fetching and the crawl cycle.
type CrawlConfig struct {
	IntervalMinutes            int   `yaml:"interval_minutes"`
	MaintenanceIntervalMinutes int   `yaml:"maintenance_interval_minutes"`
	MaxPagesPerCycle           int   `yaml:"max_pages_per_cycle"`
	Workers                    int   `yaml:"workers"`
	QueueSize                  int   `yaml:"queue_size"`
	FetchTimeoutSeconds        int   `yaml:"fetch_timeout_seconds"`
	MaxBodySizeBytes           int64 `yaml:"max_body_size_bytes"`
	RetryMaxAttempts           int   `yaml:"retry_max_attempts"`
	FailureThreshold           int   `yaml:"failure_threshold"`
}

// RevalidationConfig configures the periodic compliance sweep.
type RevalidationConfig struct {
	IntervalHours int    `yaml:"interval_hours"`
	CronSpec      string `yaml:"cron_spec"`
}

// Config is the full service configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	Temporal     TemporalConfig     `yaml:"temporal"`
	Logging      *logging.LogConfig `yaml:"logging"`
	Compliance   ComplianceConfig   `yaml:"compliance"`
	Crawl        CrawlConfig        `yaml:"crawl"`
	Revalidation RevalidationConfig `yaml:"revalidation"`
}

// Default returns the configuration matching the documented defaults: min
// score 0.5, crawl delay floor 2s, failure threshold 5, revalidation every
// 720h, fetch timeout 30s, 3 fetch attempts.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			CORSOrigins: "*",
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "newswatch",
		},
		Logging: logging.DefaultLogConfig(),
		Compliance: ComplianceConfig{
			MinScore:             0.5,
			RobotsWeight:         0.30,
			CrawlDelayWeight:     0.20,
			TermsWeight:          0.20,
			LegalContactWeight:   0.15,
			FairUseWeight:        0.15,
			VerifyTermsReachable: true,
			RobotsCacheTTLHours:  24,
			UserAgent:            "NewsWatch/1.0 (+https://rosalind-labs.io/bot)",
		},
		Crawl: CrawlConfig{
			IntervalMinutes:            60,
			MaintenanceIntervalMinutes: 15,
			MaxPagesPerCycle:           20,
			Workers:                    4,
			QueueSize:                  64,
			FetchTimeoutSeconds:        30,
			MaxBodySizeBytes:           10 * 1024 * 1024,
			RetryMaxAttempts:           3,
			FailureThreshold:           5,
		},
		Revalidation: RevalidationConfig{
			IntervalHours: 720,
			CronSpec:      "@hourly",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error; env-only
// deployments are common.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("TEMPORAL_HOST"); v != "" {
		c.Temporal.Enabled = true
		c.Temporal.HostPort = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = v
	}
}

// ValidatorConfig builds the compliance validator configuration.
func (c *Config) ValidatorConfig() *compliance.ValidatorConfig {
	return &compliance.ValidatorConfig{
		MinScore: c.Compliance.MinScore,
		Weights: compliance.Weights{
			Robots:       c.Compliance.RobotsWeight,
			CrawlDelay:   c.Compliance.CrawlDelayWeight,
			TermsURL:     c.Compliance.TermsWeight,
			LegalContact: c.Compliance.LegalContactWeight,
			FairUse:      c.Compliance.FairUseWeight,
		},
		FetchTimeout:         time.Duration(c.Crawl.FetchTimeoutSeconds) * time.Second,
		VerifyTermsReachable: c.Compliance.VerifyTermsReachable,
	}
}

// RobotsConfig builds the robots.txt checker configuration.
func (c *Config) RobotsConfig() *compliance.RobotsConfig {
	return &compliance.RobotsConfig{
		UserAgent:    c.Compliance.UserAgent,
		FetchTimeout: time.Duration(c.Crawl.FetchTimeoutSeconds) * time.Second,
		CacheTTL:     time.Duration(c.Compliance.RobotsCacheTTLHours) * time.Hour,
	}
}

// FetcherConfig builds the page fetcher configuration.
func (c *Config) FetcherConfig() *scrape.FetcherConfig {
	cfg := scrape.DefaultFetcherConfig()
	cfg.UserAgent = c.Compliance.UserAgent
	cfg.Timeout = time.Duration(c.Crawl.FetchTimeoutSeconds) * time.Second
	cfg.MaxBodySize = c.Crawl.MaxBodySizeBytes
	return cfg
}

// ExecutorConfig builds the scrape executor configuration.
func (c *Config) ExecutorConfig() *scrape.ExecutorConfig {
	return &scrape.ExecutorConfig{FailureThreshold: c.Crawl.FailureThreshold}
}

// PoolConfig builds the worker pool configuration.
func (c *Config) PoolConfig() *scrape.PoolConfig {
	return &scrape.PoolConfig{
		Workers:   c.Crawl.Workers,
		QueueSize: c.Crawl.QueueSize,
	}
}

// RetryPolicy builds the fetch retry policy.
func (c *Config) RetryPolicy() *scrape.RetryPolicy {
	policy := scrape.DefaultRetryPolicy()
	policy.MaxAttempts = c.Crawl.RetryMaxAttempts
	return policy
}

// EngineConfig builds the engine configuration.
func (c *Config) EngineConfig() *engine.Config {
	return &engine.Config{
		CrawlInterval:       time.Duration(c.Crawl.IntervalMinutes) * time.Minute,
		MaintenanceInterval: time.Duration(c.Crawl.MaintenanceIntervalMinutes) * time.Minute,
		MaxPagesPerCycle:    c.Crawl.MaxPagesPerCycle,
		Actor:               "engine",
	}
}

// RevalidationSchedulerConfig builds the sweep configuration.
func (c *Config) RevalidationSchedulerConfig() *revalidation.SchedulerConfig {
	return &revalidation.SchedulerConfig{
		Interval: time.Duration(c.Revalidation.IntervalHours) * time.Hour,
		CronSpec: c.Revalidation.CronSpec,
	}
}
