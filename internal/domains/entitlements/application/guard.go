package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// Authorize decides whether the buyer may open a course. It only reads enrollments, so it
// does not care which payment channel produced the grant.
func (s *Service) Authorize(ctx context.Context, buyerID, courseID string) (*domain.Decision, error) {
	buyerID = strings.TrimSpace(buyerID)
	courseID = strings.TrimSpace(courseID)
	if buyerID == "" {
		return nil, mapError(domain.ErrInvalidBuyer)
	}
	if courseID == "" {
		return nil, mapError(purchase.ErrEmptyID)
	}

	course, err := s.catalog.LookupCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, ports.ErrUnknownTarget) {
			decision := domain.Deny(domain.ReasonTargetUnavailable)
			return &decision, nil
		}
		return nil, err
	}
	if !course.Published {
		decision := domain.Deny(domain.ReasonTargetUnavailable)
		return &decision, nil
	}

	candidates := []purchase.Target{purchase.Course(course.ID)}
	if course.LevelCode != "" {
		candidates = append([]purchase.Target{purchase.Level(course.LevelCode)}, candidates...)
	}
	for _, target := range candidates {
		held, err := s.holding(ctx, buyerID, target)
		if err != nil {
			return nil, err
		}
		if held != nil {
			s.touch(ctx, held)
			decision := domain.Allow(held)
			return &decision, nil
		}
	}
	decision := domain.Deny(domain.ReasonNoEntitlement)
	return &decision, nil
}

// touch refreshes LastAccessedAt without holding up the decision.
func (s *Service) touch(ctx context.Context, e *domain.Enrollment) {
	at := s.now()
	id := e.ID
	s.background(ctx, s.touchTimeout, func(ctx context.Context) {
		if err := s.repo.Touch(ctx, id, at); err != nil {
			s.warn(ctx, "last access not recorded", err, slog.String("enrollment.id", id))
		}
	})
}
