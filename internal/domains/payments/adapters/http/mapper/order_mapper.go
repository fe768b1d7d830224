package mapper

import (
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// SessionRequest is the body of POST /payments/sessions.
type SessionRequest struct {
	TargetKind string `json:"targetKind" binding:"required"`
	TargetID   string `json:"targetId" binding:"required"`
}

// Session is returned once a checkout is open.
type Session struct {
	OrderCode   int64     `json:"orderCode"`
	CheckoutURL string    `json:"checkoutUrl"`
	QRPayload   string    `json:"qrPayload,omitempty"`
	Amount      int64     `json:"amount"`
	Reference   string    `json:"reference"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Status is what polling clients see.
type Status struct {
	OrderCode  int64      `json:"orderCode"`
	Status     string     `json:"status"`
	Granted    bool       `json:"granted"`
	SettledVia string     `json:"settledVia,omitempty"`
	SettledAt  *time.Time `json:"settledAt,omitempty"`
	// Review is set when payment arrived but access is withheld pending manual review.
	Review bool `json:"review,omitempty"`
	// Stale marks the stored status served while the provider could not be asked; poll again.
	Stale     bool `json:"stale,omitempty"`
	Retryable bool `json:"retryable,omitempty"`
}

// CancelRequest is the optional body of the cancel route.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// WebhookAck answers the provider once an event was processed.
type WebhookAck struct {
	Success   bool   `json:"success"`
	OrderCode int64  `json:"orderCode,omitempty"`
	Status    string `json:"status,omitempty"`
}

// ToTarget validates the requested purchase.
func (r SessionRequest) ToTarget() (purchase.Target, error) {
	return purchase.NewTarget(r.TargetKind, r.TargetID)
}

// FromCheckout maps a freshly opened checkout.
func FromCheckout(session *ports.CheckoutSession) Session {
	if session == nil || session.Order == nil {
		return Session{}
	}
	o := session.Order
	return Session{
		OrderCode:   o.Code,
		CheckoutURL: o.CheckoutURL,
		QRPayload:   o.QRPayload,
		Amount:      o.Amount,
		Reference:   o.Reference,
		ExpiresAt:   o.ExpiresAt,
	}
}

// FromOrder maps the stored order for status responses.
func FromOrder(order *domain.Order) Status {
	if order == nil {
		return Status{}
	}
	return Status{
		OrderCode:  order.Code,
		Status:     string(order.Status),
		Granted:    order.GrantedAt != nil,
		SettledVia: string(order.SettledVia),
		SettledAt:  order.SettledAt,
		Review:     order.Status == domain.StatusPaid && order.Underpaid(),
	}
}

// FromOutcome maps a reconciliation step; NeedsReview overrides the stored flag.
func FromOutcome(outcome *ports.Outcome) Status {
	if outcome == nil {
		return Status{}
	}
	status := FromOrder(outcome.Order)
	if outcome.NeedsReview {
		status.Review = true
	}
	return status
}

// FromStaleOrder maps the stored order when the provider could not be reached.
func FromStaleOrder(order *domain.Order) Status {
	status := FromOrder(order)
	status.Stale = true
	status.Retryable = true
	return status
}
