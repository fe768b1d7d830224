package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/adapters/memory"
	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

func seededService(t *testing.T) (*Service, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	svc := NewService(repo)
	ctx := context.Background()
	require.NoError(t, svc.SaveLevel(ctx, &domain.Level{Code: "b1", Title: "Intermediate", Price: 10000, Published: true}))
	require.NoError(t, svc.SaveLevel(ctx, &domain.Level{Code: "C2", Title: "Mastery", Price: 30000}))
	require.NoError(t, svc.SaveCourse(ctx, &domain.Course{ID: "b1-grammar", LevelCode: "b1", Title: "Grammar", Price: 4000, Published: true}))
	require.NoError(t, svc.SaveCourse(ctx, &domain.Course{ID: "b1-retired", LevelCode: "B1", Title: "Old", Price: 1000}))
	return svc, repo
}

func TestQuote_PricesFromCatalog(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	offer, err := svc.Quote(ctx, purchase.Level("B1"))
	require.NoError(t, err)
	require.Equal(t, int64(10000), offer.Amount)
	require.Equal(t, "Intermediate", offer.Title)

	offer, err = svc.Quote(ctx, purchase.Course("b1-grammar"))
	require.NoError(t, err)
	require.Equal(t, int64(4000), offer.Amount)

	_, err = svc.Quote(ctx, purchase.Level("C2"))
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = svc.Quote(ctx, purchase.Course("b1-retired"))
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = svc.Quote(ctx, purchase.Course("missing"))
	require.ErrorIs(t, err, ports.ErrNotFound)
	_, err = svc.Quote(ctx, purchase.Target{Kind: "bundle", ID: "x"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestQuote_ReturnsStoredIdentity(t *testing.T) {
	svc, _ := seededService(t)

	offer, err := svc.Quote(context.Background(), purchase.Target{Kind: purchase.KindLevel, ID: "b1"})
	require.NoError(t, err)
	require.Equal(t, purchase.Level("B1"), offer.Target)
	require.Equal(t, "B1", offer.Target.ID)
}

func TestAdjustStudents_NeverNegative(t *testing.T) {
	svc, repo := seededService(t)
	ctx := context.Background()

	require.NoError(t, svc.AdjustStudents(ctx, purchase.Level("B1"), 1))
	require.NoError(t, svc.AdjustStudents(ctx, purchase.Level("B1"), 1))
	require.NoError(t, svc.AdjustStudents(ctx, purchase.Level("B1"), -1))
	level, err := repo.GetLevel(ctx, "B1")
	require.NoError(t, err)
	require.Equal(t, int64(1), level.StudentsCount)

	require.NoError(t, svc.AdjustStudents(ctx, purchase.Course("b1-grammar"), -5))
	course, err := svc.GetCourse(ctx, "b1-grammar")
	require.NoError(t, err)
	require.Zero(t, course.StudentsCount)

	require.ErrorIs(t, svc.AdjustStudents(ctx, purchase.Course("missing"), 1), ports.ErrNotFound)
}

func TestSave_ValidatesAndListsByLevel(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.SaveCourse(ctx, &domain.Course{ID: "free", Price: 0}), ErrInvalidInput)
	require.ErrorIs(t, svc.SaveLevel(ctx, &domain.Level{Code: " ", Price: 1}), ErrInvalidInput)

	courses, err := svc.ListCourses(ctx, "B1")
	require.NoError(t, err)
	require.Len(t, courses, 2)
	require.Equal(t, "b1-grammar", courses[0].ID)
}
