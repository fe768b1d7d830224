package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/users/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore abstracts session persistence.
type SessionStore interface {
	Save(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	// PurgeExpired removes sessions that expired before now and reports how many.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
