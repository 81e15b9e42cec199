// Package workflows defines the durable Temporal paths for source
// onboarding and compliance revalidation.
package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// SourceOnboardingInput is the source submission handed to the workflow.
type SourceOnboardingInput struct {
	Name                 string `json:"name"`
	BaseURL              string `json:"base_url"`
	Language             string `json:"language"`
	Country              string `json:"country"`
	CrawlDelaySeconds    int    `json:"crawl_delay_seconds"`
	TermsURL             string `json:"terms_url"`
	LegalContact         string `json:"legal_contact"`
	FairUseJustification string `json:"fair_use_justification"`
}

// SourceOnboardingResult mirrors the activity output for workflow callers.
type SourceOnboardingResult struct {
	SourceID   string   `json:"source_id"`
	Passed     bool     `json:"passed"`
	Score      float64  `json:"score"`
	Violations []string `json:"violations"`
	StrategyID string   `json:"strategy_id,omitempty"`
	Platform   string   `json:"platform,omitempty"`
}

// SourceOnboardingWorkflow validates a submitted source, applies the
// compliance gate and installs an extraction strategy when the source
// passes. Compliance failure is a terminal business outcome, not an error,
// so the workflow completes either way with the score and violations.
func SourceOnboardingWorkflow(ctx workflow.Context, input SourceOnboardingInput) (*SourceOnboardingResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting source onboarding", "name", input.Name, "base_url", input.BaseURL)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result SourceOnboardingResult
	err := workflow.ExecuteActivity(ctx, "OnboardSourceActivity", input).Get(ctx, &result)
	if err != nil {
		logger.Error("Source onboarding failed", "error", err)
		return nil, fmt.Errorf("onboarding activity failed: %w", err)
	}

	if !result.Passed {
		logger.Warn("Source failed compliance validation",
			"source_id", result.SourceID,
			"score", result.Score,
			"violations", len(result.Violations))
		return &result, nil
	}

	logger.Info("Source onboarded",
		"source_id", result.SourceID,
		"score", result.Score,
		"platform", result.Platform)
	return &result, nil
}
