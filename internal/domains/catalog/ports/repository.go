package ports

import (
	"context"
	"errors"

	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/domain"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var ErrNotFound = errors.New("catalog item not found")

// Repository stores levels and courses and owns the students counters.
type Repository interface {
	GetLevel(ctx context.Context, code string) (*domain.Level, error)
	GetCourse(ctx context.Context, id string) (*domain.Course, error)
	ListCourses(ctx context.Context, levelCode string) ([]*domain.Course, error)
	SaveLevel(ctx context.Context, level *domain.Level) error
	SaveCourse(ctx context.Context, course *domain.Course) error
	// IncrementStudents adds delta in one statement; the counter never drops below zero.
	IncrementStudents(ctx context.Context, target purchase.Target, delta int64) error
}
