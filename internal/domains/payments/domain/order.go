package domain

import (
	"errors"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// Status enumerates the order lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
	// StatusNotFound is only ever observed from the gateway; it is stored as EXPIRED.
	StatusNotFound Status = "NOT_FOUND"
)

// DefaultOrderTTL bounds how long a checkout session stays open.
const DefaultOrderTTL = 15 * time.Minute

var (
	ErrInvalidCode   = errors.New("order code must be greater than zero")
	ErrInvalidBuyer  = errors.New("buyer id is required")
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrInvalidStatus = errors.New("order status is invalid")
)

// IsTerminal reports whether no further transition is accepted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// Normalize folds NOT_FOUND into EXPIRED; the gateway forgets expired orders.
func (s Status) Normalize() Status {
	if s == StatusNotFound {
		return StatusExpired
	}
	return s
}

// Valid reports whether the status is one the gateway or the registry may report.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled, StatusExpired, StatusNotFound:
		return true
	default:
		return false
	}
}

// Order is one purchase attempt against the payment gateway.
type Order struct {
	Code        int64
	BuyerID     string
	Target      purchase.Target
	Amount      int64
	Reference   string
	CheckoutURL string
	QRPayload   string
	Status      Status
	SettledVia  Channel
	SettledAt   *time.Time
	PaidAmount  int64
	GatewayRef  string
	GrantedAt   *time.Time
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// NewOrder builds a PENDING order that expires ttl after now.
func NewOrder(code int64, buyerID string, target purchase.Target, amount int64, now time.Time, ttl time.Duration) (*Order, error) {
	if ttl <= 0 {
		ttl = DefaultOrderTTL
	}
	order := &Order{
		Code:      code,
		BuyerID:   buyerID,
		Target:    target,
		Amount:    amount,
		Reference: target.Reference(),
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate enforces the aggregate invariants.
func (o *Order) Validate() error {
	if o.Code <= 0 {
		return ErrInvalidCode
	}
	if o.BuyerID == "" {
		return ErrInvalidBuyer
	}
	if err := o.Target.Validate(); err != nil {
		return err
	}
	if o.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !o.Status.Valid() || o.Status == StatusNotFound {
		return ErrInvalidStatus
	}
	return nil
}

// IsTerminal reports whether the order already settled.
func (o *Order) IsTerminal() bool { return o.Status.IsTerminal() }

// IsExpired reports a PENDING order whose checkout window closed.
func (o *Order) IsExpired(now time.Time) bool {
	return o.Status == StatusPending && !now.Before(o.ExpiresAt)
}

// RemainingTTL is zero once the order expired.
func (o *Order) RemainingTTL(now time.Time) time.Duration {
	if d := o.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// NeedsGrant reports a PAID order whose entitlement has not been recorded yet.
func (o *Order) NeedsGrant() bool {
	return o.Status == StatusPaid && o.GrantedAt == nil
}

// Underpaid reports a payment whose reported amount is known and short of the price.
func (o *Order) Underpaid() bool {
	return o.Status == StatusPaid && o.PaidAmount > 0 && o.PaidAmount < o.Amount
}

// OwnedBy reports whether buyerID placed the order.
func (o *Order) OwnedBy(buyerID string) bool {
	return buyerID != "" && o.BuyerID == buyerID
}

// Transition is the single compare-and-set mutation leaving PENDING.
type Transition struct {
	To         Status
	Channel    Channel
	PaidAmount int64
	GatewayRef string
	At         time.Time
}

// Apply mutates the order in place; callers must have checked it is still PENDING.
func (o *Order) Apply(t Transition) {
	at := t.At
	o.Status = t.To
	o.SettledVia = t.Channel
	o.SettledAt = &at
	if t.To == StatusPaid {
		o.PaidAmount = t.PaidAmount
		o.GatewayRef = t.GatewayRef
	}
}

// PaidAmountOrPrice is the amount recorded on the entitlement.
func (o *Order) PaidAmountOrPrice() int64 {
	if o.PaidAmount > 0 {
		return o.PaidAmount
	}
	return o.Amount
}
