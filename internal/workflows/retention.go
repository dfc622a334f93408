package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RetentionTaskQueue is the task queue the janitor worker polls.
const RetentionTaskQueue = "fix-retention"

// RetentionInput is the input for the retention workflow.
type RetentionInput struct {
	MaxAge time.Duration
}

// RetentionResult reports what a retention run removed.
type RetentionResult struct {
	Cutoff  time.Time
	Deleted int64
}

// RetentionWorkflow deletes fixes older than MaxAge.
func RetentionWorkflow(ctx workflow.Context, input RetentionInput) (RetentionResult, error) {
	logger := workflow.GetLogger(ctx)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// The cutoff is taken from workflow time so replays see the same value.
	cutoff := workflow.Now(ctx).Add(-input.MaxAge)
	logger.Info("Starting retention workflow", "cutoff", cutoff)

	var deleted int64
	if err := workflow.ExecuteActivity(ctx, "PurgeFixes", cutoff).Get(ctx, &deleted); err != nil {
		return RetentionResult{}, err
	}

	logger.Info("Retention finished", "deleted", deleted)
	return RetentionResult{Cutoff: cutoff, Deleted: deleted}, nil
}
