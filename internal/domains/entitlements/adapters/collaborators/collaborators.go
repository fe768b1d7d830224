// Package collaborators adapts the catalog and users services to the ports the
// entitlements context depends on.
package collaborators

import (
	"context"
	"errors"
	"fmt"

	catalogports "github.com/Apurer/course-marketplace-api/internal/domains/catalog/ports"
	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	userports "github.com/Apurer/course-marketplace-api/internal/domains/users/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var (
	_ ports.Catalog   = (*Catalog)(nil)
	_ ports.Directory = (*Directory)(nil)
)

type Catalog struct {
	catalog catalogports.Service
}

func NewCatalog(catalog catalogports.Service) *Catalog {
	return &Catalog{catalog: catalog}
}

func (c *Catalog) LookupCourse(ctx context.Context, courseID string) (*ports.CourseRef, error) {
	course, err := c.catalog.GetCourse(ctx, courseID)
	if errors.Is(err, catalogports.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ports.ErrUnknownTarget, err)
	}
	if err != nil {
		return nil, err
	}
	return &ports.CourseRef{ID: course.ID, LevelCode: course.LevelCode, Published: course.Published}, nil
}

func (c *Catalog) AdjustStudents(ctx context.Context, target purchase.Target, delta int64) error {
	err := c.catalog.AdjustStudents(ctx, target, delta)
	if errors.Is(err, catalogports.ErrNotFound) {
		return fmt.Errorf("%w: %w", ports.ErrUnknownTarget, err)
	}
	return err
}

// Directory resolves buyer contacts from the account store.
type Directory struct {
	users userports.Service
}

func NewDirectory(users userports.Service) *Directory {
	return &Directory{users: users}
}

func (d *Directory) Contact(ctx context.Context, buyerID string) (*ports.Contact, error) {
	user, err := d.users.GetByID(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return &ports.Contact{Email: user.Email, DisplayName: user.DisplayName}, nil
}
