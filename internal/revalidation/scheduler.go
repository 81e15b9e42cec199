// Package revalidation re-runs compliance checks on validated sources at a
// fixed cadence. A source that fails revalidation is disabled and drops out
// of crawl admission immediately; re-enabling always requires a fresh
// validation.
package revalidation

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rosalind-labs/newswatch/internal/compliance"
	"github.com/rosalind-labs/newswatch/internal/store"
	"github.com/rosalind-labs/newswatch/pkg/article"
	"github.com/rosalind-labs/newswatch/pkg/logging"
	"github.com/rs/zerolog"
)

const actor = "revalidation-scheduler"

// SchedulerConfig configures the revalidation sweep.
type SchedulerConfig struct {
	// Interval is how long a validation result stays fresh. Sources whose
	// last check is older than this are due.
	Interval time.Duration `json:"interval"`
	// CronSpec controls how often the sweep itself runs.
	CronSpec string `json:"cron_spec"`
}

// DefaultSchedulerConfig revalidates every 30 days, sweeping hourly.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Interval: 30 * 24 * time.Hour,
		CronSpec: "@hourly",
	}
}

// Scheduler sweeps for due sources and revalidates them.
type Scheduler struct {
	store     store.Store
	validator *compliance.Validator
	config    *SchedulerConfig
	cron      *cron.Cron
	log       zerolog.Logger

	// onDisable is invoked after a source has been disabled, so the crawl
	// side can evict it without waiting for its next admission check.
	onDisable func(sourceID string)
}

// NewScheduler creates a revalidation scheduler. onDisable may be nil.
func NewScheduler(st store.Store, validator *compliance.Validator, config *SchedulerConfig, onDisable func(sourceID string)) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	return &Scheduler{
		store:     st,
		validator: validator,
		config:    config,
		log:       logging.GetLogger("revalidation"),
		onDisable: onDisable,
	}
}

// Start schedules the periodic sweep. The provided context bounds each
// sweep run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.config.CronSpec, func() {
		if _, err := s.RunSweep(ctx); err != nil {
			s.log.Error().Err(err).Msg("Revalidation sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid revalidation cron spec %q: %w", s.config.CronSpec, err)
	}
	s.cron.Start()

	s.log.Info().
		Str("cron", s.config.CronSpec).
		Dur("interval", s.config.Interval).
		Msg("Revalidation scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Checked  int `json:"checked"`
	Passed   int `json:"passed"`
	Disabled int `json:"disabled"`
}

// RunSweep revalidates every due source once. It is exported so operators
// can trigger a sweep outside the cron cadence.
func (s *Scheduler) RunSweep(ctx context.Context) (*SweepReport, error) {
	sources, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	report := &SweepReport{}
	cutoff := time.Now().Add(-s.config.Interval)

	for _, src := range sources {
		if !src.Active || src.ValidationStatus != article.StatusValidated {
			continue
		}
		if src.LastComplianceCheck.After(cutoff) {
			continue
		}
		report.Checked++

		if err := s.revalidate(ctx, src); err != nil {
			s.log.Error().Err(err).Str("source_id", src.ID.String()).Msg("Revalidation failed")
			continue
		}
		if src.ValidationStatus == article.StatusValidated {
			report.Passed++
		} else {
			report.Disabled++
		}
	}

	s.log.Info().
		Int("checked", report.Checked).
		Int("passed", report.Passed).
		Int("disabled", report.Disabled).
		Msg("Revalidation sweep completed")
	return report, nil
}

// revalidate runs one source through validation and applies the result.
// src is updated in place so the caller can read the new status.
func (s *Scheduler) revalidate(ctx context.Context, src *article.Source) error {
	result, err := s.validator.Validate(ctx, src, article.AuditRevalidate, actor)
	if err != nil {
		return err
	}

	scoreBefore := src.ComplianceScore
	src.ComplianceScore = result.Score
	src.LastComplianceCheck = result.CheckedAt

	if result.Passed {
		src.ValidationStatus = article.StatusValidated
		return s.store.UpdateSource(ctx, src)
	}
	return s.disable(ctx, src, result, scoreBefore)
}

// disable marks a failing source inactive and records the disablement in
// the audit trail as its own entry, distinct from the revalidation entry.
func (s *Scheduler) disable(ctx context.Context, src *article.Source, result *compliance.ValidationResult, scoreBefore float64) error {
	src.Active = false
	src.ValidationStatus = article.StatusFailed

	if err := s.store.UpdateSource(ctx, src); err != nil {
		return fmt.Errorf("failed to disable source: %w", err)
	}

	entry := &article.ComplianceAuditEntry{
		SourceID:        src.ID,
		Action:          article.AuditDisable,
		ResultingStatus: article.StatusFailed,
		ScoreBefore:     scoreBefore,
		ScoreAfter:      result.Score,
		Actor:           actor,
	}
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("failed to record disablement: %w", err)
	}

	s.log.Warn().
		Str("source_id", src.ID.String()).
		Str("name", src.Name).
		Float64("score", result.Score).
		Strs("violations", result.Messages()).
		Msg("Source disabled after failed revalidation")

	if s.onDisable != nil {
		s.onDisable(src.ID.String())
	}
	return nil
}
