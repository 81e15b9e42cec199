package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// SweepResult summarizes one revalidation sweep.
type SweepResult struct {
	Checked  int `json:"checked"`
	Passed   int `json:"passed"`
	Disabled int `json:"disabled"`
}

// RevalidationSweepWorkflow revalidates every due source once. It is
// started on a cron schedule via workflow options; sources that fail are
// disabled inside the activity and drop out of crawl admission.
func RevalidationSweepWorkflow(ctx workflow.Context) (*SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting revalidation sweep")

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result SweepResult
	if err := workflow.ExecuteActivity(ctx, "RevalidationSweepActivity").Get(ctx, &result); err != nil {
		logger.Error("Revalidation sweep failed", "error", err)
		return nil, err
	}

	logger.Info("Revalidation sweep completed",
		"checked", result.Checked,
		"passed", result.Passed,
		"disabled", result.Disabled)
	return &result, nil
}
