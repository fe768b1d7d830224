package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
)

const (
	defaultNotifyTimeout = 10 * time.Second
	defaultTouchTimeout  = 2 * time.Second
)

// Service grants, checks and refunds entitlements. Side effects that must not fail the
// caller (counter, notifier, access timestamp) run in tracked goroutines; Wait drains them.
type Service struct {
	repo      ports.Repository
	catalog   ports.Catalog
	directory ports.Directory
	notifier  ports.Notifier
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	notifyTimeout time.Duration
	touchTimeout  time.Duration

	wg sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithDirectory(d ports.Directory) Option {
	return func(s *Service) {
		s.directory = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func NewService(repo ports.Repository, catalog ports.Catalog, opts ...Option) *Service {
	s := &Service{
		repo:          repo,
		catalog:       catalog,
		now:           time.Now,
		newID:         uuid.NewString,
		notifyTimeout: defaultNotifyTimeout,
		touchTimeout:  defaultTouchTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Wait blocks until background side effects have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) ListForBuyer(ctx context.Context, buyerID string) ([]*domain.Enrollment, error) {
	if buyerID == "" {
		return nil, mapError(domain.ErrInvalidBuyer)
	}
	return s.repo.ListByBuyer(ctx, buyerID)
}

// background runs fn detached from the caller's cancellation but bounded by timeout.
func (s *Service) background(ctx context.Context, timeout time.Duration, fn func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		fn(bgCtx)
	}()
}

func (s *Service) warn(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

var _ ports.Service = (*Service)(nil)
