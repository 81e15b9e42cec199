// Package scrape runs extraction jobs end-to-end: politeness admission,
// fetch, extraction, dedup and the downstream hand-off, expressed as an
// explicit state machine per attempt.
package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/rosalind-labs/newswatch/internal/dedup"
	"github.com/rosalind-labs/newswatch/internal/platform"
	"github.com/rosalind-labs/newswatch/internal/politeness"
	"github.com/rosalind-labs/newswatch/internal/store"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/rs/zerolog/log"
)

// State is one step of the executor's lifecycle.
type State string

const (
	StateIdle          State = "idle"
	StateFetching      State = "fetching"
	StateExtracting    State = "extracting"
	StateDeduplicating State = "deduplicating"
	StateEmitting      State = "emitting"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
	StateSkipped       State = "skipped"
)

// Annotator is the downstream NLP collaborator. It receives accepted
// articles after they are persisted; its failures never fail the crawl.
type Annotator interface {
	Annotate(ctx context.Context, a *article.Article) error
}

// Outcome is the terminal result of one extraction job.
type Outcome struct {
	State   State            `json:"state"`
	Article *article.Article `json:"article,omitempty"`
	Err     error            `json:"-"`

	// StructuralFailure marks extraction failures caused by the strategy
	// no longer matching the page.
	StructuralFailure bool `json:"structural_failure"`
	// NeedsRegeneration is set when the source's consecutive structural
	// failure count has crossed the regeneration threshold.
	NeedsRegeneration bool `json:"needs_regeneration"`

	Duration time.Duration `json:"duration"`
}

// ExecutorConfig configures the executor.
type ExecutorConfig struct {
	// FailureThreshold is the number of consecutive structural extraction
	// failures after which the source's strategy is regenerated.
	FailureThreshold int `json:"failure_threshold"`
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{FailureThreshold: 5}
}

// Executor runs one extraction job at a time. It is safe for concurrent
// use; shared state lives in the store and the politeness scheduler.
type Executor struct {
	fetcher    *Fetcher
	politeness *politeness.Scheduler
	store      store.Store
	retry      *RetryPolicy
	annotator  Annotator
	config     *ExecutorConfig
}

// NewExecutor creates an executor. annotator may be nil when no downstream
// consumer is wired.
func NewExecutor(
	fetcher *Fetcher,
	scheduler *politeness.Scheduler,
	st store.Store,
	retry *RetryPolicy,
	annotator Annotator,
	config *ExecutorConfig,
) *Executor {
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	if config == nil {
		config = DefaultExecutorConfig()
	}
	return &Executor{
		fetcher:    fetcher,
		politeness: scheduler,
		store:      st,
		retry:      retry,
		annotator:  annotator,
		config:     config,
	}
}

// Run executes one job: fetch pageURL under the source's crawl delay,
// apply the strategy, hash, dedup-check and emit. Every terminal state
// releases the politeness permit, so one failure never stalls the domain's
// future admission.
func (e *Executor) Run(ctx context.Context, src *article.Source, strategy *article.ExtractionStrategy, pageURL string) Outcome {
	start := time.Now()
	domain := src.Domain()

	// Idle -> Fetching happens on admission.
	if err := e.politeness.Acquire(ctx, domain, src.CrawlDelay()); err != nil {
		return Outcome{State: StateFailed, Err: err, Duration: time.Since(start)}
	}
	defer e.politeness.Release(domain)

	outcome := e.run(ctx, src, strategy, pageURL)
	outcome.Duration = time.Since(start)

	log.Debug().
		Str("source_id", src.ID.String()).
		Str("url", pageURL).
		Str("state", string(outcome.State)).
		Dur("duration", outcome.Duration).
		Msg("Extraction job finished")

	return outcome
}

func (e *Executor) run(ctx context.Context, src *article.Source, strategy *article.ExtractionStrategy, pageURL string) Outcome {
	// Fetching.
	var page *Page
	err := e.retry.Do(ctx, func() error {
		var fetchErr error
		page, fetchErr = e.fetcher.Fetch(ctx, pageURL)
		return fetchErr
	})
	if err != nil {
		log.Warn().Err(err).Str("url", pageURL).Msg("Fetch failed")
		return Outcome{State: StateFailed, Err: err}
	}

	// Extracting.
	fields, err := platform.Extract(strategy, string(page.Body), page.FinalURL)
	if err != nil {
		var structural *platform.StructuralError
		if errors.As(err, &structural) {
			return e.recordStructuralFailure(ctx, src, pageURL, structural)
		}
		return Outcome{State: StateFailed, Err: err}
	}
	e.resetFailureCounter(ctx, src)

	// Deduplicating.
	hash, err := dedup.Hash(fields.Title, fields.Body)
	if err != nil {
		return Outcome{State: StateFailed, Err: err}
	}

	candidate := &article.Article{
		SourceID:     src.ID,
		CanonicalURL: fields.CanonicalURL,
		Title:        fields.Title,
		Body:         fields.Body,
		PublishedAt:  fields.PublishedAt,
		ContentHash:  hash,
	}

	if err := e.store.InsertArticle(ctx, candidate); err != nil {
		if errors.Is(err, store.ErrDuplicateContent) {
			// Losing a concurrent compare-and-insert race lands here too.
			return Outcome{State: StateSkipped, Err: nil}
		}
		return Outcome{State: StateFailed, Err: err}
	}

	// Emitting.
	if e.annotator != nil {
		if err := e.annotator.Annotate(ctx, candidate); err != nil {
			log.Error().
				Err(err).
				Str("article_id", candidate.ID.String()).
				Msg("Downstream annotation failed")
		}
	}

	return Outcome{State: StateSucceeded, Article: candidate}
}

// recordStructuralFailure bumps the source's consecutive failure counter
// and reports whether the regeneration threshold was crossed. The persisted
// counter is authoritative: a regeneration elsewhere resets it, and a stale
// in-memory copy must not write the old count back over that reset.
func (e *Executor) recordStructuralFailure(ctx context.Context, src *article.Source, pageURL string, structural *platform.StructuralError) Outcome {
	if current, err := e.store.GetSource(ctx, src.ID); err == nil {
		src.ConsecutiveExtractionFailures = current.ConsecutiveExtractionFailures
	}
	src.ConsecutiveExtractionFailures++
	if err := e.store.UpdateSource(ctx, src); err != nil {
		log.Error().Err(err).Str("source_id", src.ID.String()).Msg("Failed to persist failure counter")
	}

	needsRegen := src.ConsecutiveExtractionFailures >= e.config.FailureThreshold

	log.Warn().
		Str("source_id", src.ID.String()).
		Str("url", pageURL).
		Strs("missing_fields", structural.Missing).
		Int("consecutive_failures", src.ConsecutiveExtractionFailures).
		Bool("needs_regeneration", needsRegen).
		Msg("Structural extraction failure")

	return Outcome{
		State:             StateFailed,
		Err:               structural,
		StructuralFailure: true,
		NeedsRegeneration: needsRegen,
	}
}

func (e *Executor) resetFailureCounter(ctx context.Context, src *article.Source) {
	if src.ConsecutiveExtractionFailures == 0 {
		return
	}
	src.ConsecutiveExtractionFailures = 0
	if err := e.store.UpdateSource(ctx, src); err != nil {
		log.Error().Err(err).Str("source_id", src.ID.String()).Msg("Failed to reset failure counter")
	}
}
