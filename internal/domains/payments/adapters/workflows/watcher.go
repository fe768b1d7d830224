package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	paymentsapp "github.com/Apurer/course-marketplace-api/internal/domains/payments/application"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	settlementworkflows "github.com/Apurer/course-marketplace-api/internal/platform/temporal/workflows/payments"
)

var (
	_ ports.SettlementWatcher = (*TemporalSettlementWatcher)(nil)
	_ ports.SettlementWatcher = (*InlineSettlementWatcher)(nil)
)

// TemporalSettlementWatcher starts one settlement workflow per order on a Temporal cluster.
type TemporalSettlementWatcher struct {
	client    client.Client
	taskQueue string
	grace     time.Duration
}

// NewTemporalSettlementWatcher wires a Temporal client into the watcher.
func NewTemporalSettlementWatcher(c client.Client, grace time.Duration) *TemporalSettlementWatcher {
	return &TemporalSettlementWatcher{client: c, taskQueue: settlementworkflows.SettlementTaskQueue, grace: grace}
}

// Watch starts the workflow without waiting for it. A workflow already running for the
// order counts as success.
func (w *TemporalSettlementWatcher) Watch(ctx context.Context, code int64, expiresAt time.Time) error {
	if w == nil || w.client == nil {
		return errors.New("temporal settlement watcher not configured")
	}
	options := client.StartWorkflowOptions{
		ID:        SettlementWorkflowID(code),
		TaskQueue: w.taskQueue,
	}
	_, err := w.client.ExecuteWorkflow(ctx, options, settlementworkflows.SettlementWorkflow, settlementworkflows.SettlementWorkflowInput{
		OrderCode: code,
		ExpiresAt: expiresAt,
		Grace:     w.grace,
		TraceID:   workflowTraceID(ctx),
	})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return nil
		}
		return err
	}
	return nil
}

// SettlementWorkflowID is deterministic so a second Watch for the same order is deduplicated.
func SettlementWorkflowID(code int64) string {
	return fmt.Sprintf("payment-settlement-%d", code)
}

// InlineSettlementWatcher polls in a goroutine when Temporal is not available. It is not
// durable: watches in flight are lost on restart and the client/webhook channels remain.
type InlineSettlementWatcher struct {
	reconciler ports.Reconciler
	logger     *slog.Logger
	grace      time.Duration
	initial    time.Duration
	max        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	running map[int64]struct{}
	wg      sync.WaitGroup
}

// InlineOption customises an InlineSettlementWatcher.
type InlineOption func(*InlineSettlementWatcher)

// WithLogger sets the logger used for sweep failures.
func WithLogger(logger *slog.Logger) InlineOption {
	return func(w *InlineSettlementWatcher) {
		w.logger = logger
	}
}

// WithIntervals overrides the backoff bounds.
func WithIntervals(initial, maxInterval time.Duration) InlineOption {
	return func(w *InlineSettlementWatcher) {
		if initial > 0 {
			w.initial = initial
		}
		if maxInterval > 0 {
			w.max = maxInterval
		}
	}
}

// NewInlineSettlementWatcher wraps the reconciler for in-process sweeping.
func NewInlineSettlementWatcher(reconciler ports.Reconciler, grace time.Duration, opts ...InlineOption) *InlineSettlementWatcher {
	if grace <= 0 {
		grace = settlementworkflows.DefaultGrace
	}
	w := &InlineSettlementWatcher{
		reconciler: reconciler,
		grace:      grace,
		initial:    settlementworkflows.InitialSweepInterval,
		max:        settlementworkflows.MaxSweepInterval,
		now:        time.Now,
		running:    make(map[int64]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Watch returns immediately; the sweep loop outlives the request context.
func (w *InlineSettlementWatcher) Watch(ctx context.Context, code int64, expiresAt time.Time) error {
	if w == nil || w.reconciler == nil {
		return errors.New("inline settlement watcher not configured")
	}
	w.mu.Lock()
	if _, ok := w.running[code]; ok {
		w.mu.Unlock()
		return nil
	}
	w.running[code] = struct{}{}
	w.mu.Unlock()

	deadline := expiresAt.Add(w.grace)
	runCtx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline.Add(w.max))
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()
		defer w.release(code)
		w.run(runCtx, code, deadline)
	}()
	return nil
}

// Wait blocks until every running watch has finished.
func (w *InlineSettlementWatcher) Wait() {
	w.wg.Wait()
}

func (w *InlineSettlementWatcher) run(ctx context.Context, code int64, deadline time.Time) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.initial
	policy.MaxInterval = w.max
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	operation := func() error {
		outcome, err := w.reconciler.Sweep(ctx, code)
		switch {
		case errors.Is(err, ports.ErrNotFound):
			return backoff.Permanent(err)
		case err != nil && !errors.Is(err, paymentsapp.ErrGrantFailed):
			w.log(ctx, slog.LevelWarn, "settlement sweep failed", code, err)
		}
		if err == nil && settled(outcome) {
			return nil
		}
		if !w.now().Before(deadline) {
			return backoff.Permanent(errUnsettled)
		}
		if err != nil {
			return err
		}
		return errUnsettled
	}
	err := backoff.Retry(operation, backoff.WithContext(&deadlineBackOff{BackOff: policy, deadline: deadline, now: w.now}, ctx))
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		w.log(ctx, slog.LevelWarn, "settlement watcher stopped before the order settled", code, err)
	}
}

func (w *InlineSettlementWatcher) release(code int64) {
	w.mu.Lock()
	delete(w.running, code)
	w.mu.Unlock()
}

func (w *InlineSettlementWatcher) log(ctx context.Context, level slog.Level, msg string, code int64, err error) {
	if w.logger == nil {
		return
	}
	w.logger.LogAttrs(ctx, level, msg, slog.Int64("order.code", code), slog.String("error", err.Error()))
}

var errUnsettled = errors.New("order not settled yet")

func settled(outcome *ports.Outcome) bool {
	if outcome == nil || outcome.Order == nil || !outcome.Order.IsTerminal() {
		return false
	}
	return !outcome.Order.NeedsGrant() || outcome.NeedsReview
}

// deadlineBackOff shortens the last wait so one sweep lands on the deadline.
type deadlineBackOff struct {
	backoff.BackOff
	deadline time.Time
	now      func() time.Time
}

func (b *deadlineBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if remaining := b.deadline.Sub(b.now()); remaining < next {
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	return next
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}
