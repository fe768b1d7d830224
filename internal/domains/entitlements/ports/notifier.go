package ports

import (
	"context"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// GrantedNotice announces a newly created enrollment.
type GrantedNotice struct {
	EnrollmentID string
	BuyerID      string
	Email        string
	DisplayName  string
	Target       purchase.Target
	OrderCode    int64
	Amount       int64
	GrantedAt    time.Time
}

// Notifier delivers grant confirmations. Delivery is best effort; errors are only logged.
type Notifier interface {
	NotifyGranted(ctx context.Context, notice GrantedNotice) error
}
