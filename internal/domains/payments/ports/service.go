package ports

import (
	"context"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// CheckoutSession is returned to the buyer after opening a payment.
type CheckoutSession struct {
	Order *domain.Order
	// Watched is false when the settlement watcher could not be started.
	Watched bool
}

// Outcome is what one reconciliation step observed and did.
type Outcome struct {
	Order *domain.Order
	// Transitioned is true only for the call whose compare-and-set moved the order out of PENDING.
	Transitioned bool
	// Grant is set when the granter ran during this call.
	Grant *GrantResult
	// NeedsReview flags a PAID order whose grant was withheld (under-payment).
	NeedsReview bool
	// LatePayment is set when the gateway reports PAID for an order already cancelled or expired.
	LatePayment bool
}

// Reconciler merges the webhook, poll and manual-confirm channels into one order state.
type Reconciler interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*Outcome, error)
	Poll(ctx context.Context, code int64, buyerID string) (*Outcome, error)
	Confirm(ctx context.Context, code int64, buyerID string) (*Outcome, error)
	Sweep(ctx context.Context, code int64) (*Outcome, error)
}

// Service exposes the payment use cases to adapters.
type Service interface {
	Reconciler
	CreateSession(ctx context.Context, buyerID string, target purchase.Target) (*CheckoutSession, error)
	Cancel(ctx context.Context, code int64, buyerID, reason string) (*Outcome, error)
	GetOrder(ctx context.Context, code int64, buyerID string) (*domain.Order, error)
}
