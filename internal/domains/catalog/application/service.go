package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errors.New("invalid catalog input")
	// ErrUnavailable means the target exists but cannot be bought right now.
	ErrUnavailable = errors.New("catalog item not available for purchase")
)

// Service prices purchases and maintains the students counters.
type Service struct {
	repo ports.Repository
}

func NewService(repo ports.Repository) *Service {
	return &Service{repo: repo}
}

// Quote prices a target from the catalog; the client never supplies the amount.
func (s *Service) Quote(ctx context.Context, target purchase.Target) (*ports.Offer, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	switch target.Kind {
	case purchase.KindLevel:
		level, err := s.repo.GetLevel(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		if !level.Purchasable() {
			return nil, ErrUnavailable
		}
		return &ports.Offer{Target: purchase.Level(level.Code), Title: level.Title, Amount: level.Price}, nil
	default:
		course, err := s.repo.GetCourse(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		if !course.Purchasable() {
			return nil, ErrUnavailable
		}
		return &ports.Offer{Target: purchase.Course(course.ID), Title: course.Title, Amount: course.Price}, nil
	}
}

func (s *Service) GetLevel(ctx context.Context, code string) (*domain.Level, error) {
	return s.repo.GetLevel(ctx, code)
}

func (s *Service) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	return s.repo.GetCourse(ctx, id)
}

func (s *Service) ListCourses(ctx context.Context, levelCode string) ([]*domain.Course, error) {
	return s.repo.ListCourses(ctx, levelCode)
}

func (s *Service) AdjustStudents(ctx context.Context, target purchase.Target, delta int64) error {
	if err := target.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if delta == 0 {
		return nil
	}
	return s.repo.IncrementStudents(ctx, target, delta)
}

func (s *Service) SaveLevel(ctx context.Context, level *domain.Level) error {
	if level == nil {
		return fmt.Errorf("%w: level is nil", ErrInvalidInput)
	}
	normalized, err := domain.NewLevel(level.Code, level.Title, level.Price, level.Published)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	normalized.StudentsCount = level.StudentsCount
	return s.repo.SaveLevel(ctx, normalized)
}

func (s *Service) SaveCourse(ctx context.Context, course *domain.Course) error {
	if course == nil {
		return fmt.Errorf("%w: course is nil", ErrInvalidInput)
	}
	normalized, err := domain.NewCourse(course.ID, course.LevelCode, course.Title, course.Price, course.Published)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	normalized.StudentsCount = course.StudentsCount
	return s.repo.SaveCourse(ctx, normalized)
}

var _ ports.Service = (*Service)(nil)
