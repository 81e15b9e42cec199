// Package engine orchestrates the full source lifecycle: compliance-gated
// onboarding, strategy generation, scheduled crawl cycles, deduplicated
// emission and strategy regeneration. Nothing is ever crawled without a
// passing validation on record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rosalind-labs/newswatch/internal/compliance"
	"github.com/rosalind-labs/newswatch/internal/platform"
	"github.com/rosalind-labs/newswatch/internal/politeness"
	"github.com/rosalind-labs/newswatch/internal/scrape"
	"github.com/rosalind-labs/newswatch/internal/store"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/rosalind-labs/newswatch/pkg/logging"
	"github.com/rs/zerolog/log"
)

// Config configures the engine's crawl cycle.
type Config struct {
	// CrawlInterval is how often schedulable sources are visited.
	CrawlInterval time.Duration `json:"crawl_interval"`
	// MaxPagesPerCycle caps how many article links one source contributes
	// to a single cycle.
	MaxPagesPerCycle int `json:"max_pages_per_cycle"`
	// MaintenanceInterval is how often the robots cache and the politeness
	// records are swept for stale entries.
	MaintenanceInterval time.Duration `json:"maintenance_interval"`
	// Actor names this process in the compliance audit trail.
	Actor string `json:"actor"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CrawlInterval:       1 * time.Hour,
		MaxPagesPerCycle:    20,
		MaintenanceInterval: 15 * time.Minute,
		Actor:               "engine",
	}
}

// Metrics are the engine's running counters.
type Metrics struct {
	SourcesOnboarded  int64 `json:"sources_onboarded"`
	ValidationsFailed int64 `json:"validations_failed"`
	CrawlsSucceeded   int64 `json:"crawls_succeeded"`
	CrawlsFailed      int64 `json:"crawls_failed"`
	CrawlsSkipped     int64 `json:"crawls_skipped"`
	Regenerations     int64 `json:"regenerations"`
	Disables          int64 `json:"disables"`
}

// OnboardResult is returned to the caller who submitted a source.
type OnboardResult struct {
	Source     *article.Source              `json:"source"`
	Validation *compliance.ValidationResult `json:"validation"`
	Strategy   *article.ExtractionStrategy  `json:"strategy,omitempty"`
}

// Engine wires the compliance validator, the strategy generator and the
// scrape pool into one service.
type Engine struct {
	store      store.Store
	validator  *compliance.Validator
	generator  *platform.Generator
	fetcher    *scrape.Fetcher
	politeness *politeness.Scheduler
	executor   *scrape.Executor
	pool       *scrape.Pool
	config     *Config

	mu       sync.Mutex
	metrics  Metrics
	disabled map[uuid.UUID]struct{}

	stopOnce sync.Once
}

// NewEngine builds the engine and its scrape pool. annotator may be nil.
func NewEngine(
	st store.Store,
	validator *compliance.Validator,
	generator *platform.Generator,
	fetcher *scrape.Fetcher,
	scheduler *politeness.Scheduler,
	annotator scrape.Annotator,
	retry *scrape.RetryPolicy,
	executorConfig *scrape.ExecutorConfig,
	poolConfig *scrape.PoolConfig,
	config *Config,
) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaintenanceInterval <= 0 {
		config.MaintenanceInterval = 15 * time.Minute
	}
	executor := scrape.NewExecutor(fetcher, scheduler, st, retry, annotator, executorConfig)
	return &Engine{
		store:      st,
		validator:  validator,
		generator:  generator,
		fetcher:    fetcher,
		politeness: scheduler,
		executor:   executor,
		pool:       scrape.NewPool(executor, poolConfig),
		config:     config,
		disabled:   make(map[uuid.UUID]struct{}),
	}
}

// Start launches the pool, the result consumer and the crawl scheduler.
// It returns immediately; ctx cancellation winds the loops down.
func (e *Engine) Start(ctx context.Context) {
	e.pool.Start(ctx)
	go e.consumeResults(ctx)
	go e.schedulerLoop(ctx)
	go e.maintenanceLoop(ctx)

	log.Info().
		Dur("crawl_interval", e.config.CrawlInterval).
		Msg("Engine started")
}

// Stop drains the pool.
func (e *Engine) Stop() {
	e.stopOnce.Do(e.pool.Stop)
}

// OnboardSource validates and registers a new source. The compliance gate
// binds activation only: a failing source is stored with status failed and
// active false, alongside the violations explaining why. A passing source
// gets its extraction strategy generated from a sample page and becomes
// schedulable.
func (e *Engine) OnboardSource(ctx context.Context, src *article.Source) (*OnboardResult, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if src.ID == uuid.Nil {
		src.ID = uuid.New()
	}
	src.Active = false
	src.ValidationStatus = article.StatusPending

	if err := e.store.CreateSource(ctx, src); err != nil {
		return nil, err
	}

	result, err := e.validator.Validate(ctx, src, article.AuditValidate, e.config.Actor)
	if err != nil {
		return nil, fmt.Errorf("validation aborted: %w", err)
	}

	src.ComplianceScore = result.Score
	src.LastComplianceCheck = result.CheckedAt

	out := &OnboardResult{Source: src, Validation: result}

	if !result.Passed {
		src.ValidationStatus = article.StatusFailed
		if err := e.store.UpdateSource(ctx, src); err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.metrics.ValidationsFailed++
		e.mu.Unlock()

		srcLog := logging.GetSourceLogger(src.ID.String(), src.Name)
		srcLog.Warn().
			Float64("score", result.Score).
			Msg("Source failed compliance validation")
		return out, nil
	}

	src.ValidationStatus = article.StatusValidated
	src.Active = true

	strategy, err := e.generateStrategy(ctx, src)
	if err != nil {
		// A strategy will be generated on the first crawl cycle instead.
		log.Warn().Err(err).Str("source_id", src.ID.String()).Msg("Initial strategy generation failed")
	} else {
		out.Strategy = strategy
	}

	if err := e.store.UpdateSource(ctx, src); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.metrics.SourcesOnboarded++
	e.mu.Unlock()

	srcLog := logging.GetSourceLogger(src.ID.String(), src.Name)
	srcLog.Info().
		Float64("score", result.Score).
		Msg("Source onboarded")
	return out, nil
}

// generateStrategy fetches a sample page under the source's crawl delay,
// detects the platform and atomically installs the strategy.
func (e *Engine) generateStrategy(ctx context.Context, src *article.Source) (*article.ExtractionStrategy, error) {
	sample, err := e.fetchPolitely(ctx, src, src.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sample page: %w", err)
	}

	strategy := e.generator.DetectAndGenerate(src, string(sample.Body))
	if err := e.store.ReplaceStrategy(ctx, strategy); err != nil {
		return nil, fmt.Errorf("failed to install strategy: %w", err)
	}
	src.StrategyID = &strategy.ID
	return strategy, nil
}

// RegenerateStrategy rebuilds a source's strategy after repeated structural
// failures. Replacement is atomic and scoped to the one source; the failure
// counter resets so the new strategy starts clean.
func (e *Engine) RegenerateStrategy(ctx context.Context, sourceID uuid.UUID) (*article.ExtractionStrategy, error) {
	src, err := e.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	strategy, err := e.generateStrategy(ctx, src)
	if err != nil {
		return nil, err
	}

	src.ConsecutiveExtractionFailures = 0
	if err := e.store.UpdateSource(ctx, src); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.metrics.Regenerations++
	e.mu.Unlock()

	srcLog := logging.GetSourceLogger(src.ID.String(), src.Name)
	srcLog.Warn().
		Str("platform", string(strategy.Platform)).
		Msg("Extraction strategy regenerated")
	return strategy, nil
}

// CrawlSource runs one synchronous crawl cycle for a single source and
// returns the per-page outcomes.
func (e *Engine) CrawlSource(ctx context.Context, sourceID uuid.UUID) ([]scrape.Outcome, error) {
	src, err := e.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !e.admissible(src) {
		return nil, fmt.Errorf("source %s is not schedulable", sourceID)
	}

	strategy, pages, err := e.prepareCycle(ctx, src)
	if err != nil {
		return nil, err
	}

	outcomes := make([]scrape.Outcome, 0, len(pages))
	for _, page := range pages {
		outcome := e.executor.Run(ctx, src, strategy, page)
		e.record(ctx, src, outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// schedulerLoop visits every schedulable source once per interval.
func (e *Engine) schedulerLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.CrawlInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.runCycle(ctx); err != nil {
				log.Error().Err(err).Msg("Crawl cycle failed")
			}
		case <-ctx.Done():
			log.Info().Msg("Engine scheduler stopping")
			return
		}
	}
}

// runCycle enqueues one crawl pass over all schedulable sources. A failure
// on one source never stops the cycle for the others.
func (e *Engine) runCycle(ctx context.Context) error {
	sources, err := e.store.ListSchedulable(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schedulable sources: %w", err)
	}

	enqueued := 0
	for _, src := range sources {
		if !e.admissible(src) {
			continue
		}
		strategy, pages, err := e.prepareCycle(ctx, src)
		if err != nil {
			log.Warn().Err(err).Str("source_id", src.ID.String()).Msg("Skipping source this cycle")
			continue
		}
		for _, page := range pages {
			if err := e.pool.Submit(ctx, scrape.Job{Source: src, Strategy: strategy, PageURL: page}); err != nil {
				return err
			}
			enqueued++
		}
	}

	log.Info().Int("sources", len(sources)).Int("pages", enqueued).Msg("Crawl cycle enqueued")
	return nil
}

// prepareCycle loads (or lazily generates) the source's strategy and
// discovers the article links for this pass.
func (e *Engine) prepareCycle(ctx context.Context, src *article.Source) (*article.ExtractionStrategy, []string, error) {
	strategy, err := e.store.GetStrategy(ctx, src.ID)
	if errors.Is(err, store.ErrNotFound) {
		strategy, err = e.generateStrategy(ctx, src)
	}
	if err != nil {
		return nil, nil, err
	}

	pages, err := e.discoverLinks(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	return strategy, pages, nil
}

// maintenanceLoop periodically drops expired robots.txt cache entries and
// politeness records for domains that have gone quiet.
func (e *Engine) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.runMaintenance()
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) runMaintenance() (robotsCleared, domainsCleaned int) {
	robotsCleared = e.validator.ClearExpiredRobots()
	// A domain idle for two full cycles is no longer being crawled.
	domainsCleaned = e.politeness.CleanupInactive(2 * e.config.CrawlInterval)

	log.Debug().
		Int("robots_cleared", robotsCleared).
		Int("domains_cleaned", domainsCleaned).
		Msg("Maintenance pass completed")
	return robotsCleared, domainsCleaned
}

// consumeResults drains pool outcomes, keeps the counters current and
// triggers regeneration when a source crosses its failure threshold.
func (e *Engine) consumeResults(ctx context.Context) {
	for result := range e.pool.Results() {
		e.record(ctx, result.Job.Source, result.Outcome)
	}
}

func (e *Engine) record(ctx context.Context, src *article.Source, outcome scrape.Outcome) {
	e.mu.Lock()
	switch outcome.State {
	case scrape.StateSucceeded:
		e.metrics.CrawlsSucceeded++
	case scrape.StateSkipped:
		e.metrics.CrawlsSkipped++
	default:
		e.metrics.CrawlsFailed++
	}
	e.mu.Unlock()

	if outcome.NeedsRegeneration {
		if _, err := e.RegenerateStrategy(ctx, src.ID); err != nil {
			log.Error().Err(err).Str("source_id", src.ID.String()).Msg("Strategy regeneration failed")
		}
	}
}

// OnDisable evicts a source from admission the moment revalidation disables
// it. In-flight jobs for the source run to completion; no new ones start.
func (e *Engine) OnDisable(sourceID string) {
	id, err := uuid.Parse(sourceID)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.disabled[id] = struct{}{}
	e.metrics.Disables++
	e.mu.Unlock()

	log.Info().Str("source_id", sourceID).Msg("Source evicted from crawl admission")
}

func (e *Engine) admissible(src *article.Source) bool {
	if !src.Schedulable() {
		return false
	}
	e.mu.Lock()
	_, disabled := e.disabled[src.ID]
	e.mu.Unlock()
	return !disabled
}

// GetMetrics returns a copy of the running counters.
func (e *Engine) GetMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// discoverLinks fetches the source's front page under its crawl delay and
// collects same-host article links, capped at MaxPagesPerCycle.
func (e *Engine) discoverLinks(ctx context.Context, src *article.Source) ([]string, error) {
	page, err := e.fetchPolitely(ctx, src, src.BaseURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(page.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("invalid final URL %q: %w", page.FinalURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page.Body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse front page: %w", err)
	}

	seen := make(map[string]struct{})
	links := make([]string, 0, e.config.MaxPagesPerCycle)

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if resolved.Host != base.Host || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return true
		}
		resolved.Fragment = ""
		link := resolved.String()
		if link == page.FinalURL {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}
		links = append(links, link)
		return len(links) < e.config.MaxPagesPerCycle
	})

	log.Debug().
		Str("source_id", src.ID.String()).
		Int("links", len(links)).
		Msg("Front page links discovered")
	return links, nil
}

// fetchPolitely fetches one page holding the source's domain permit, so
// out-of-band fetches (sample pages, link discovery) respect the same
// spacing as crawl jobs.
func (e *Engine) fetchPolitely(ctx context.Context, src *article.Source, pageURL string) (*scrape.Page, error) {
	domain := src.Domain()
	if err := e.politeness.Acquire(ctx, domain, src.CrawlDelay()); err != nil {
		return nil, err
	}
	defer e.politeness.Release(domain)
	return e.fetcher.Fetch(ctx, pageURL)
}
