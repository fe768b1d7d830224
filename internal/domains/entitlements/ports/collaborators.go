package ports

import (
	"context"
	"errors"

	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// ErrUnknownTarget is returned by the catalog for courses or levels it does not know.
var ErrUnknownTarget = errors.New("catalog target not found")

// CourseRef is what the guard needs to know about a course.
type CourseRef struct {
	ID        string
	LevelCode string
	Published bool
}

// Catalog resolves course membership and keeps the per-target students counter.
type Catalog interface {
	LookupCourse(ctx context.Context, courseID string) (*CourseRef, error)
	AdjustStudents(ctx context.Context, target purchase.Target, delta int64) error
}

// Contact is where confirmations go.
type Contact struct {
	Email       string
	DisplayName string
}

// Directory looks up buyer contact details.
type Directory interface {
	Contact(ctx context.Context, buyerID string) (*Contact, error)
}
