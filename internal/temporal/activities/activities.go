// Package activities implements the Temporal activities backing the
// onboarding and revalidation workflows. Each activity is a thin wrapper
// over the engine layer so the in-process and durable paths share one
// implementation.
package activities

import (
	"context"

	"github.com/google/uuid"
	"github.com/rosalind-labs/newswatch/internal/engine"
	"github.com/rosalind-labs/newswatch/internal/revalidation"
	"github.com/rosalind-labs/newswatch/internal/store"
	"github.com/rosalind-labs/newswatch/pkg/article"
)

// Activities holds the dependencies shared by all activity implementations
type Activities struct {
	engine       *engine.Engine
	store        store.Store
	revalidation *revalidation.Scheduler
}

// NewActivities creates a new activities instance
func NewActivities(eng *engine.Engine, st store.Store, reval *revalidation.Scheduler) *Activities {
	return &Activities{
		engine:       eng,
		store:        st,
		revalidation: reval,
	}
}

// OnboardInput carries the source submission into the workflow.
type OnboardInput struct {
	Name                 string `json:"name"`
	BaseURL              string `json:"base_url"`
	Language             string `json:"language"`
	Country              string `json:"country"`
	CrawlDelaySeconds    int    `json:"crawl_delay_seconds"`
	TermsURL             string `json:"terms_url"`
	LegalContact         string `json:"legal_contact"`
	FairUseJustification string `json:"fair_use_justification"`
}

// OnboardOutput summarizes the onboarding outcome for the workflow.
type OnboardOutput struct {
	SourceID   string   `json:"source_id"`
	Passed     bool     `json:"passed"`
	Score      float64  `json:"score"`
	Violations []string `json:"violations"`
	StrategyID string   `json:"strategy_id,omitempty"`
	Platform   string   `json:"platform,omitempty"`
}

// OnboardSourceActivity validates, registers and (when passing) equips a
// source with an extraction strategy.
func (a *Activities) OnboardSourceActivity(ctx context.Context, input OnboardInput) (*OnboardOutput, error) {
	src := &article.Source{
		Name:                 input.Name,
		BaseURL:              input.BaseURL,
		Language:             input.Language,
		Country:              input.Country,
		CrawlDelaySeconds:    input.CrawlDelaySeconds,
		TermsURL:             input.TermsURL,
		LegalContact:         input.LegalContact,
		FairUseJustification: input.FairUseJustification,
	}

	result, err := a.engine.OnboardSource(ctx, src)
	if err != nil {
		return nil, err
	}

	out := &OnboardOutput{
		SourceID:   result.Source.ID.String(),
		Passed:     result.Validation.Passed,
		Score:      result.Validation.Score,
		Violations: result.Validation.Messages(),
	}
	if result.Strategy != nil {
		out.StrategyID = result.Strategy.ID.String()
		out.Platform = string(result.Strategy.Platform)
	}
	return out, nil
}

// CrawlSourceActivity runs one crawl cycle for a source.
func (a *Activities) CrawlSourceActivity(ctx context.Context, sourceID string) (*CrawlOutput, error) {
	id, err := uuid.Parse(sourceID)
	if err != nil {
		return nil, err
	}

	outcomes, err := a.engine.CrawlSource(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &CrawlOutput{SourceID: sourceID, Pages: len(outcomes)}
	for _, o := range outcomes {
		out.States = append(out.States, string(o.State))
	}
	return out, nil
}

// CrawlOutput summarizes one crawl cycle.
type CrawlOutput struct {
	SourceID string   `json:"source_id"`
	Pages    int      `json:"pages"`
	States   []string `json:"states"`
}

// RevalidationSweepActivity revalidates every due source once.
func (a *Activities) RevalidationSweepActivity(ctx context.Context) (*revalidation.SweepReport, error) {
	return a.revalidation.RunSweep(ctx)
}
