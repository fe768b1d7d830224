package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var _ ports.Repository = (*Repository)(nil)

// Repository keeps enrollments in process memory; the key map plays the unique index.
type Repository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Enrollment
	byKey map[string]string
}

func NewRepository() *Repository {
	return &Repository{
		byID:  make(map[string]*domain.Enrollment),
		byKey: make(map[string]string),
	}
}

func key(buyerID string, target purchase.Target) string {
	return buyerID + "|" + target.String()
}

func (r *Repository) Insert(ctx context.Context, e *domain.Enrollment) (*domain.Enrollment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(e.BuyerID, e.Target)
	if id, ok := r.byKey[k]; ok {
		return clone(r.byID[id]), false, nil
	}
	stored := clone(e)
	r.byID[stored.ID] = stored
	r.byKey[k] = stored.ID
	return clone(stored), true, nil
}

func (r *Repository) Get(ctx context.Context, buyerID string, target purchase.Target) (*domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key(buyerID, target)]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return clone(e), nil
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.Enrollment
	for _, e := range r.byID {
		if e.BuyerID == buyerID {
			result = append(result, clone(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EnrolledAt.Before(result[j].EnrolledAt) })
	return result, nil
}

func (r *Repository) Reactivate(ctx context.Context, id string, orderCode, paidAmount int64, paidAt time.Time) (*domain.Enrollment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false, ports.ErrNotFound
	}
	if e.Status != domain.StatusRefunded || e.OrderCode == orderCode {
		return clone(e), false, nil
	}
	e.Reactivate(orderCode, paidAmount, paidAt)
	return clone(e), true, nil
}

func (r *Repository) Refund(ctx context.Context, id string) (*domain.Enrollment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false, ports.ErrNotFound
	}
	if err := e.Refund(); err != nil {
		return clone(e), false, nil
	}
	return clone(e), true, nil
}

func (r *Repository) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return ports.ErrNotFound
	}
	e.Touch(at)
	return nil
}

func clone(e *domain.Enrollment) *domain.Enrollment {
	if e == nil {
		return nil
	}
	c := *e
	if e.PaymentDate != nil {
		t := *e.PaymentDate
		c.PaymentDate = &t
	}
	if e.LastAccessedAt != nil {
		t := *e.LastAccessedAt
		c.LastAccessedAt = &t
	}
	return &c
}
