package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
)

// ErrGatewayUnavailable marks a retryable failure talking to the payment provider.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// ErrGatewayRejected marks a request the provider refused; retrying it unchanged will not help.
var ErrGatewayRejected = errors.New("payment gateway rejected the request")

// SessionRequest carries what the provider needs to open a checkout.
type SessionRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	BuyerID     string
	ExpiresAt   time.Time
}

// Session is the provider-hosted checkout.
type Session struct {
	CheckoutURL   string
	QRPayload     string
	PaymentLinkID string
}

// RemoteStatus is the provider's view of an order.
type RemoteStatus struct {
	Status     domain.Status
	Amount     int64
	AmountPaid int64
	Reference  string
}

// Gateway wraps the external payment provider. Calls are not retried.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	QueryStatus(ctx context.Context, code int64) (*RemoteStatus, error)
	Cancel(ctx context.Context, code int64, reason string) error
}

// SignatureVerifier authenticates inbound webhook bodies.
type SignatureVerifier interface {
	Verify(rawBody []byte, signature string) bool
}
