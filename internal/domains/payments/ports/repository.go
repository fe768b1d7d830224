package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrDuplicateCode = errors.New("order code already in use")
	// ErrOpenOrderExists is returned by Create when the buyer already has a PENDING order for the target.
	ErrOpenOrderExists = errors.New("an open order already exists for this purchase")
)

// OrderRepository persists orders. Transition is the only mutation of Status and must be a
// single conditional write: it applies only while the stored order is still PENDING.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByCode(ctx context.Context, code int64) (*domain.Order, error)
	// FindOpen returns the buyer's PENDING order for target, regardless of expiry.
	FindOpen(ctx context.Context, buyerID string, target purchase.Target) (*domain.Order, error)
	AttachSession(ctx context.Context, code int64, checkoutURL, qrPayload string) error
	// Transition reports whether this call moved the order out of PENDING and returns the stored order.
	Transition(ctx context.Context, code int64, t domain.Transition) (*domain.Order, bool, error)
	MarkGranted(ctx context.Context, code int64, at time.Time) error
	// PurgeSettled deletes terminal orders that expired before cutoff.
	PurgeSettled(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventLog keeps an audit trail of every observed payment event.
type EventLog interface {
	Record(ctx context.Context, record domain.EventRecord) error
}

// NoopEventLog discards records.
var NoopEventLog EventLog = noopEventLog{}

type noopEventLog struct{}

func (noopEventLog) Record(context.Context, domain.EventRecord) error { return nil }

// CodeGenerator issues order codes.
type CodeGenerator interface {
	Next() int64
}
