package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	paymentactivities "github.com/Apurer/course-marketplace-api/internal/platform/temporal/activities/payments"
)

// RunSweepSequence executes one server-side poll of an order with its own retry policy.
func RunSweepSequence(ctx workflow.Context, orderCode int64) (*paymentactivities.SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	sweepOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	}

	var result paymentactivities.SweepResult
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, sweepOptions), paymentactivities.SweepOrderActivityName, orderCode).Get(ctx, &result)
	if err != nil {
		logger.Warn("sweep sequence failed", "orderCode", orderCode, "error", err)
		return nil, err
	}
	logger.Info("sweep sequence completed", "orderCode", orderCode, "status", result.Status, "settled", result.Settled)
	return &result, nil
}
