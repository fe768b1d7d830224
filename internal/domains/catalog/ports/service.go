package ports

import (
	"context"

	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/domain"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// Offer is the server-side price of a purchasable target.
type Offer struct {
	Target purchase.Target
	Title  string
	Amount int64
}

// Service exposes catalog use cases to adapters.
type Service interface {
	Quote(ctx context.Context, target purchase.Target) (*Offer, error)
	GetLevel(ctx context.Context, code string) (*domain.Level, error)
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	ListCourses(ctx context.Context, levelCode string) ([]*domain.Course, error)
	AdjustStudents(ctx context.Context, target purchase.Target, delta int64) error
	SaveLevel(ctx context.Context, level *domain.Level) error
	SaveCourse(ctx context.Context, course *domain.Course) error
}
