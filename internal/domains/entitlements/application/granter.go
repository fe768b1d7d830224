package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// Grant creates the enrollment bought by an order, or returns the one the buyer already holds.
// Calling it any number of times for the same order yields one enrollment and one counter bump,
// and a refunded order never regains access.
func (s *Service) Grant(ctx context.Context, input ports.GrantInput) (*ports.GrantOutput, error) {
	now := s.now()
	candidate, err := domain.NewEnrollment(s.newID(), input.BuyerID, input.Target, input.OrderCode, input.Amount, input.PaidAt, now)
	if err != nil {
		return nil, mapError(err)
	}
	stored, created, err := s.repo.Insert(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if !created && stored.Status == domain.StatusRefunded && stored.OrderCode != input.OrderCode {
		reactivated, won, err := s.repo.Reactivate(ctx, stored.ID, input.OrderCode, input.Amount, input.PaidAt)
		if err != nil {
			return nil, err
		}
		stored, created = reactivated, won
	}
	if !created {
		return &ports.GrantOutput{Enrollment: stored}, nil
	}

	if err := s.catalog.AdjustStudents(ctx, stored.Target, 1); err != nil {
		s.warn(ctx, "students counter not incremented", err, slog.String("purchase.target", stored.Target.String()))
	}
	s.notify(ctx, stored, now)
	return &ports.GrantOutput{Created: true, Enrollment: stored}, nil
}

// HasEntitlement reports whether the buyer can already access the target, directly or through
// the level a course belongs to.
func (s *Service) HasEntitlement(ctx context.Context, buyerID string, target purchase.Target) (bool, error) {
	if err := target.Validate(); err != nil {
		return false, mapError(err)
	}
	held, err := s.holding(ctx, buyerID, target)
	if err != nil || held != nil || target.Kind != purchase.KindCourse {
		return held != nil, err
	}
	course, err := s.catalog.LookupCourse(ctx, target.ID)
	if err != nil {
		if errors.Is(err, ports.ErrUnknownTarget) {
			return false, nil
		}
		return false, err
	}
	held, err = s.holding(ctx, buyerID, purchase.Level(course.LevelCode))
	return held != nil, err
}

// holding returns the buyer's access-granting enrollment for target, or nil.
func (s *Service) holding(ctx context.Context, buyerID string, target purchase.Target) (*domain.Enrollment, error) {
	e, err := s.repo.Get(ctx, buyerID, target)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !e.GrantsAccess() {
		return nil, nil
	}
	return e, nil
}

func (s *Service) notify(ctx context.Context, e *domain.Enrollment, grantedAt time.Time) {
	if s.notifier == nil {
		return
	}
	notice := ports.GrantedNotice{
		EnrollmentID: e.ID,
		BuyerID:      e.BuyerID,
		Target:       e.Target,
		OrderCode:    e.OrderCode,
		Amount:       e.PaidAmount,
		GrantedAt:    grantedAt,
	}
	s.background(ctx, s.notifyTimeout, func(ctx context.Context) {
		if s.directory != nil {
			contact, err := s.directory.Contact(ctx, notice.BuyerID)
			if err != nil {
				s.warn(ctx, "buyer contact lookup failed", err, slog.String("buyer.id", notice.BuyerID))
			} else if contact != nil {
				notice.Email = contact.Email
				notice.DisplayName = contact.DisplayName
			}
		}
		if err := s.notifier.NotifyGranted(ctx, notice); err != nil {
			s.warn(ctx, "grant confirmation not delivered", err,
				slog.String("enrollment.id", notice.EnrollmentID), slog.Int64("order.code", notice.OrderCode))
		}
	})
}
