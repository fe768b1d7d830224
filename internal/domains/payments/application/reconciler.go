package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
)

// Reconciler funnels webhook, poll and manual-confirm observations into one transition per order.
// It holds no locks; the repository's conditional Transition is the only arbiter.
type Reconciler struct {
	orders   ports.OrderRepository
	gateway  ports.Gateway
	verifier ports.SignatureVerifier
	granter  ports.Granter
	events   ports.EventLog
	now      func() time.Time
}

// ReconcilerOption customises a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithEventLog records every observed event.
func WithEventLog(events ports.EventLog) ReconcilerOption {
	return func(r *Reconciler) {
		if events != nil {
			r.events = events
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler wires the state machine to its collaborators.
func NewReconciler(orders ports.OrderRepository, gateway ports.Gateway, verifier ports.SignatureVerifier, granter ports.Granter, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		orders:   orders,
		gateway:  gateway,
		verifier: verifier,
		granter:  granter,
		events:   ports.NoopEventLog,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// HandleWebhook verifies, decodes and applies a pushed status.
func (r *Reconciler) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*ports.Outcome, error) {
	if r.verifier == nil || !r.verifier.Verify(rawBody, signature) {
		return nil, ErrInvalidSignature
	}
	payload, status, err := decodeWebhook(rawBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	order, err := r.orders.GetByCode(ctx, payload.OrderCode)
	if err != nil {
		return nil, err
	}
	return r.ApplyStatus(ctx, order, domain.Event{
		OrderCode:  order.Code,
		Status:     status,
		AmountPaid: payload.Amount,
		GatewayRef: payload.Reference,
		Channel:    domain.ChannelWebhook,
		ObservedAt: r.now(),
		Payload:    rawBody,
	})
}

// Poll re-queries the gateway for the buyer's order.
func (r *Reconciler) Poll(ctx context.Context, code int64, buyerID string) (*ports.Outcome, error) {
	order, err := r.ownedOrder(ctx, code, buyerID)
	if err != nil {
		return nil, err
	}
	return r.observe(ctx, order, domain.ChannelPoll)
}

// Confirm handles the client's "I paid" claim by asking the gateway, never the client.
func (r *Reconciler) Confirm(ctx context.Context, code int64, buyerID string) (*ports.Outcome, error) {
	order, err := r.ownedOrder(ctx, code, buyerID)
	if err != nil {
		return nil, err
	}
	return r.observe(ctx, order, domain.ChannelManualConfirm)
}

// Sweep is the server-side poll used by the settlement watcher.
func (r *Reconciler) Sweep(ctx context.Context, code int64) (*ports.Outcome, error) {
	order, err := r.orders.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return r.observe(ctx, order, domain.ChannelSweep)
}

// ApplyStatus is the transition function shared by every channel.
func (r *Reconciler) ApplyStatus(ctx context.Context, order *domain.Order, event domain.Event) (*ports.Outcome, error) {
	if order == nil {
		return nil, ports.ErrNotFound
	}
	outcome := &ports.Outcome{Order: order}
	reported := event.Status.Normalize()
	if !order.IsTerminal() {
		now := r.now()
		to, channel := event.Resolve(order, now)
		if to != domain.StatusPending {
			stored, won, err := r.orders.Transition(ctx, order.Code, domain.Transition{
				To:         to,
				Channel:    channel,
				PaidAmount: event.AmountPaid,
				GatewayRef: event.GatewayRef,
				At:         now,
			})
			if err != nil {
				r.record(ctx, event, outcome, err)
				return nil, err
			}
			outcome.Order = stored
			outcome.Transitioned = won
			if won && channel == domain.ChannelExpiry {
				r.cancelRemote(ctx, stored.Code, "order expired")
			}
		}
	}
	if reported == domain.StatusPaid && outcome.Order.Status != domain.StatusPaid {
		outcome.LatePayment = true
	}
	r.record(ctx, event, outcome, nil)
	return r.settle(ctx, outcome)
}

// settle re-attempts the grant for a PAID order that does not have one yet.
func (r *Reconciler) settle(ctx context.Context, outcome *ports.Outcome) (*ports.Outcome, error) {
	order := outcome.Order
	if !order.NeedsGrant() {
		return outcome, nil
	}
	if order.Underpaid() {
		outcome.NeedsReview = true
		return outcome, nil
	}
	paidAt := r.now()
	if order.SettledAt != nil {
		paidAt = *order.SettledAt
	}
	result, err := r.granter.Grant(ctx, ports.GrantRequest{
		BuyerID:   order.BuyerID,
		Target:    order.Target,
		OrderCode: order.Code,
		Amount:    order.PaidAmountOrPrice(),
		PaidAt:    paidAt,
	})
	if err != nil {
		return outcome, fmt.Errorf("%w: order %d: %w", ErrGrantFailed, order.Code, err)
	}
	outcome.Grant = result
	grantedAt := r.now()
	if err := r.orders.MarkGranted(ctx, order.Code, grantedAt); err != nil {
		return outcome, fmt.Errorf("%w: order %d: %w", ErrGrantFailed, order.Code, err)
	}
	order.GrantedAt = &grantedAt
	return outcome, nil
}

// observe asks the gateway about an order and applies what it says. Gateway failures leave a
// live order untouched and surface as retryable; an order past its deadline expires regardless.
func (r *Reconciler) observe(ctx context.Context, order *domain.Order, channel domain.Channel) (*ports.Outcome, error) {
	if order.IsTerminal() {
		return r.settle(ctx, &ports.Outcome{Order: order})
	}
	remote, err := r.gateway.QueryStatus(ctx, order.Code)
	if err != nil {
		if !order.IsExpired(r.now()) {
			return nil, err
		}
		return r.ApplyStatus(ctx, order, domain.Event{
			OrderCode:  order.Code,
			Status:     domain.StatusPending,
			Channel:    channel,
			ObservedAt: r.now(),
		})
	}
	return r.ApplyStatus(ctx, order, domain.Event{
		OrderCode:  order.Code,
		Status:     remote.Status,
		AmountPaid: remote.AmountPaid,
		GatewayRef: remote.Reference,
		Channel:    channel,
		ObservedAt: r.now(),
	})
}

// ownedOrder hides other buyers' orders behind ErrNotFound.
func (r *Reconciler) ownedOrder(ctx context.Context, code int64, buyerID string) (*domain.Order, error) {
	if code <= 0 {
		return nil, mapError(domain.ErrInvalidCode)
	}
	order, err := r.orders.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(buyerID) {
		return nil, ports.ErrNotFound
	}
	return order, nil
}

// cancelRemote tells the gateway to drop an order we gave up on; failures are ignored.
func (r *Reconciler) cancelRemote(ctx context.Context, code int64, reason string) {
	if r.gateway == nil {
		return
	}
	_ = r.gateway.Cancel(ctx, code, reason)
}

func (r *Reconciler) record(ctx context.Context, event domain.Event, outcome *ports.Outcome, cause error) {
	rec := domain.EventRecord{
		OrderCode:    event.OrderCode,
		Channel:      event.Channel,
		Reported:     event.Status,
		Resulting:    outcome.Order.Status,
		Transitioned: outcome.Transitioned,
		Payload:      event.Payload,
		ObservedAt:   event.ObservedAt,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = r.now()
	}
	// the audit trail never blocks reconciliation
	_ = r.events.Record(ctx, rec)
}

// IsBenignRejection reports webhook failures the provider should not redeliver.
func IsBenignRejection(err error) bool {
	return errors.Is(err, ErrMalformedEvent) || errors.Is(err, ports.ErrNotFound) || errors.Is(err, ErrInvalidInput)
}

var _ ports.Reconciler = (*Reconciler)(nil)
