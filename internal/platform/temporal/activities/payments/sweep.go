package payments

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"

	paymentsapp "github.com/Apurer/course-marketplace-api/internal/domains/payments/application"
	paymentsports "github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
)

// SweepOrderActivityName asks the gateway about an order and reconciles the answer.
const SweepOrderActivityName = "payments.activities.SweepOrder"

// SweepResult tells the settlement workflow whether it can stop watching.
type SweepResult struct {
	Status string
	// Settled is true once nothing else can happen to the order: it is terminal and either
	// granted, not owed a grant, or held for review.
	Settled bool
}

// Activities groups activities that operate on the payments bounded context.
type Activities struct {
	reconciler paymentsports.Reconciler
}

// NewActivities wires the reconciler into the Temporal activities bundle.
func NewActivities(reconciler paymentsports.Reconciler) *Activities {
	return &Activities{reconciler: reconciler}
}

// SweepOrder runs one server-side poll. A failed grant is reported as unsettled rather than
// as an error so the workflow keeps its own cadence instead of burning activity retries.
func (a *Activities) SweepOrder(ctx context.Context, code int64) (*SweepResult, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.reconciler == nil {
		logger.Error("sweep activity not initialized", "orderCode", code)
		return nil, errors.New("sweep activity not initialized")
	}
	outcome, err := a.reconciler.Sweep(ctx, code)
	switch {
	case errors.Is(err, paymentsports.ErrNotFound):
		logger.Warn("SweepOrder found no order; stopping", "orderCode", code)
		return &SweepResult{Settled: true}, nil
	case errors.Is(err, paymentsapp.ErrGrantFailed):
		logger.Warn("SweepOrder grant failed; will retry on next sweep", "orderCode", code, "error", err)
		return &SweepResult{Status: statusOf(outcome)}, nil
	case err != nil:
		logger.Error("SweepOrder failed", "orderCode", code, "error", err)
		return nil, err
	}
	result := &SweepResult{Status: statusOf(outcome)}
	if order := outcome.Order; order != nil && order.IsTerminal() {
		result.Settled = !order.NeedsGrant() || outcome.NeedsReview
	}
	logger.Info("SweepOrder completed", "orderCode", code, "status", result.Status, "settled", result.Settled)
	return result, nil
}

func statusOf(outcome *paymentsports.Outcome) string {
	if outcome == nil || outcome.Order == nil {
		return ""
	}
	return string(outcome.Order.Status)
}
