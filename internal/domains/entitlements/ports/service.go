package ports

import (
	"context"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// GrantInput is the entitlement bought by a paid order.
type GrantInput struct {
	BuyerID   string
	Target    purchase.Target
	OrderCode int64
	Amount    int64
	PaidAt    time.Time
}

// GrantOutput reports whether this call created the enrollment.
type GrantOutput struct {
	Created    bool
	Enrollment *domain.Enrollment
}

// Service exposes entitlement use cases to adapters.
type Service interface {
	Grant(ctx context.Context, input GrantInput) (*GrantOutput, error)
	HasEntitlement(ctx context.Context, buyerID string, target purchase.Target) (bool, error)
	Authorize(ctx context.Context, buyerID, courseID string) (*domain.Decision, error)
	ListForBuyer(ctx context.Context, buyerID string) ([]*domain.Enrollment, error)
	Refund(ctx context.Context, enrollmentID string) (*domain.Enrollment, error)
}
