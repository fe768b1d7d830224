package application

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
)

// Refund marks the enrollment refunded and gives back its seat in the students counter.
func (s *Service) Refund(ctx context.Context, enrollmentID string) (*domain.Enrollment, error) {
	enrollmentID = strings.TrimSpace(enrollmentID)
	if enrollmentID == "" {
		return nil, mapError(domain.ErrInvalidID)
	}
	stored, won, err := s.repo.Refund(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !won {
		return stored, domain.ErrAlreadyRefunded
	}
	if err := s.catalog.AdjustStudents(ctx, stored.Target, -1); err != nil {
		s.warn(ctx, "students counter not decremented", err, slog.String("purchase.target", stored.Target.String()))
	}
	return stored, nil
}
