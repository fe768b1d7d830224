package payments

import (
	"time"

	"go.temporal.io/sdk/workflow"

	paymentactivities "github.com/Apurer/course-marketplace-api/internal/platform/temporal/activities/payments"
	"github.com/Apurer/course-marketplace-api/internal/platform/temporal/sequences"
)

const (
	// SettlementWorkflowName is the public identifier for registering the workflow.
	SettlementWorkflowName = "payments.workflows.Settlement"
	// SettlementTaskQueue is the queue consumed by the worker processing settlement workflows.
	SettlementTaskQueue = "PAYMENT_SETTLEMENT"

	InitialSweepInterval = 5 * time.Second
	MaxSweepInterval     = time.Minute
	DefaultGrace         = 5 * time.Minute
)

// SettlementWorkflowInput identifies the order to watch and when to give up.
type SettlementWorkflowInput struct {
	OrderCode int64
	ExpiresAt time.Time
	Grace     time.Duration
	TraceID   string
}

// SettlementWorkflow sweeps an order with exponential backoff until it settles or
// ExpiresAt+Grace passes. The sweep at the deadline expires an order nobody paid.
func SettlementWorkflow(ctx workflow.Context, input SettlementWorkflowInput) (*paymentactivities.SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	grace := input.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}
	deadline := input.ExpiresAt.Add(grace)
	logger.Info("SettlementWorkflow started", withTraceID(input.TraceID, "orderCode", input.OrderCode, "deadline", deadline)...)

	interval := InitialSweepInterval
	last := &paymentactivities.SweepResult{}
	for sweeps := 1; ; sweeps++ {
		if remaining := deadline.Sub(workflow.Now(ctx)); remaining < interval {
			interval = remaining
		}
		if interval > 0 {
			if err := workflow.Sleep(ctx, interval); err != nil {
				return last, err
			}
		}
		result, err := sequences.RunSweepSequence(ctx, input.OrderCode)
		if err == nil {
			last = result
			if result.Settled {
				logger.Info("SettlementWorkflow completed", withTraceID(input.TraceID, "orderCode", input.OrderCode, "status", result.Status, "sweeps", sweeps)...)
				return result, nil
			}
		}
		if !workflow.Now(ctx).Before(deadline) {
			logger.Warn("SettlementWorkflow gave up at deadline", withTraceID(input.TraceID, "orderCode", input.OrderCode, "status", last.Status, "sweeps", sweeps)...)
			return last, nil
		}
		interval *= 2
		if interval > MaxSweepInterval {
			interval = MaxSweepInterval
		}
	}
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
