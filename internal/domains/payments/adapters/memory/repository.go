package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var _ ports.OrderRepository = (*Repository)(nil)

// Repository is an in-memory order persistence adapter.
type Repository struct {
	mu     sync.RWMutex
	orders map[int64]*domain.Order
}

func NewRepository() *Repository {
	return &Repository{orders: map[int64]*domain.Order{}}
}

func (r *Repository) Create(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order == nil {
		return nil, errors.New("order is nil")
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	clone := cloneOrder(order)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[clone.Code]; exists {
		return nil, ports.ErrDuplicateCode
	}
	if clone.Status == domain.StatusPending && r.openLocked(clone.BuyerID, clone.Target) != nil {
		return nil, ports.ErrOpenOrderExists
	}
	r.orders[clone.Code] = clone
	return cloneOrder(clone), nil
}

func (r *Repository) GetByCode(_ context.Context, code int64) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[code]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *Repository) FindOpen(_ context.Context, buyerID string, target purchase.Target) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order := r.openLocked(buyerID, target)
	if order == nil {
		return nil, ports.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *Repository) AttachSession(_ context.Context, code int64, checkoutURL, qrPayload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[code]
	if !ok {
		return ports.ErrNotFound
	}
	order.CheckoutURL = checkoutURL
	order.QRPayload = qrPayload
	return nil
}

// Transition is a compare-and-set on the PENDING status.
func (r *Repository) Transition(_ context.Context, code int64, t domain.Transition) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[code]
	if !ok {
		return nil, false, ports.ErrNotFound
	}
	if order.Status != domain.StatusPending {
		return cloneOrder(order), false, nil
	}
	order.Apply(t)
	return cloneOrder(order), true, nil
}

func (r *Repository) MarkGranted(_ context.Context, code int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[code]
	if !ok {
		return ports.ErrNotFound
	}
	if order.GrantedAt == nil {
		order.GrantedAt = &at
	}
	return nil
}

func (r *Repository) PurgeSettled(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for code, order := range r.orders {
		if order.IsTerminal() && !order.NeedsGrant() && order.ExpiresAt.Before(cutoff) {
			delete(r.orders, code)
			purged++
		}
	}
	return purged, nil
}

func (r *Repository) openLocked(buyerID string, target purchase.Target) *domain.Order {
	for _, order := range r.orders {
		if order.Status == domain.StatusPending && order.BuyerID == buyerID && order.Target == target {
			return order
		}
	}
	return nil
}

func cloneOrder(order *domain.Order) *domain.Order {
	clone := *order
	if order.SettledAt != nil {
		at := *order.SettledAt
		clone.SettledAt = &at
	}
	if order.GrantedAt != nil {
		at := *order.GrantedAt
		clone.GrantedAt = &at
	}
	return &clone
}
