package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/catalog/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var _ ports.Repository = (*Repository)(nil)

// Repository keeps the catalog in process memory.
type Repository struct {
	mu      sync.RWMutex
	levels  map[string]domain.Level
	courses map[string]domain.Course
}

func NewRepository() *Repository {
	return &Repository{
		levels:  make(map[string]domain.Level),
		courses: make(map[string]domain.Course),
	}
}

func (r *Repository) GetLevel(ctx context.Context, code string) (*domain.Level, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.levels[strings.ToUpper(code)]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &l, nil
}

func (r *Repository) GetCourse(ctx context.Context, id string) (*domain.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &c, nil
}

func (r *Repository) ListCourses(ctx context.Context, levelCode string) ([]*domain.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.Course
	for _, c := range r.courses {
		if levelCode == "" || strings.EqualFold(c.LevelCode, levelCode) {
			c := c
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *Repository) SaveLevel(ctx context.Context, level *domain.Level) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[level.Code] = *level
	return nil
}

func (r *Repository) SaveCourse(ctx context.Context, course *domain.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses[course.ID] = *course
	return nil
}

func (r *Repository) IncrementStudents(ctx context.Context, target purchase.Target, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch target.Kind {
	case purchase.KindLevel:
		l, ok := r.levels[strings.ToUpper(target.ID)]
		if !ok {
			return ports.ErrNotFound
		}
		l.StudentsCount = max(0, l.StudentsCount+delta)
		r.levels[l.Code] = l
	default:
		c, ok := r.courses[target.ID]
		if !ok {
			return ports.ErrNotFound
		}
		c.StudentsCount = max(0, c.StudentsCount+delta)
		r.courses[c.ID] = c
	}
	return nil
}
