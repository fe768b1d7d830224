package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var ErrNotFound = errors.New("enrollment not found")

// Repository persists enrollments. The (buyer, target) uniqueness is enforced by the store.
type Repository interface {
	// Insert stores e unless the buyer already holds the target, in which case the existing
	// enrollment is returned with created=false. It must be a single atomic operation.
	Insert(ctx context.Context, e *domain.Enrollment) (stored *domain.Enrollment, created bool, err error)
	Get(ctx context.Context, buyerID string, target purchase.Target) (*domain.Enrollment, error)
	GetByID(ctx context.Context, id string) (*domain.Enrollment, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Enrollment, error)
	// Reactivate turns a refunded enrollment active again for a different order; won is false when
	// it was not refunded or orderCode is the refunded order.
	Reactivate(ctx context.Context, id string, orderCode, paidAmount int64, paidAt time.Time) (stored *domain.Enrollment, won bool, err error)
	// Refund is a compare-and-set away from any non-refunded status.
	Refund(ctx context.Context, id string) (stored *domain.Enrollment, won bool, err error)
	Touch(ctx context.Context, id string, at time.Time) error
}
