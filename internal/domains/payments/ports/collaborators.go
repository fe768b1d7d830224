package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// ErrTargetUnavailable means the target cannot be sold (unknown or unpublished).
var ErrTargetUnavailable = errors.New("purchase target unavailable")

// ErrAlreadyEntitled means the buyer already holds access to the target.
var ErrAlreadyEntitled = errors.New("buyer already entitled to target")

// Offer is the server-side price of a target.
type Offer struct {
	Target purchase.Target
	Title  string
	Amount int64
}

// Pricing quotes purchasable targets.
type Pricing interface {
	Quote(ctx context.Context, target purchase.Target) (*Offer, error)
}

// GrantRequest asks for the entitlement bought by a PAID order.
type GrantRequest struct {
	BuyerID   string
	Target    purchase.Target
	OrderCode int64
	Amount    int64
	PaidAt    time.Time
}

// GrantResult reports whether the call created the entitlement.
type GrantResult struct {
	Created       bool
	EnrollmentID  string
	EntitlementOf purchase.Target
}

// Granter idempotently creates entitlements.
type Granter interface {
	Grant(ctx context.Context, req GrantRequest) (*GrantResult, error)
	HasEntitlement(ctx context.Context, buyerID string, target purchase.Target) (bool, error)
}

// SettlementWatcher keeps polling an order server-side until it settles.
type SettlementWatcher interface {
	Watch(ctx context.Context, code int64, expiresAt time.Time) error
}

// NoopSettlementWatcher relies on the client and webhook channels only.
var NoopSettlementWatcher SettlementWatcher = noopWatcher{}

type noopWatcher struct{}

func (noopWatcher) Watch(context.Context, int64, time.Time) error { return nil }
