package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

const maxCodeAttempts = 3

// Registry maps order codes to purchase intents.
type Registry struct {
	orders ports.OrderRepository
	codes  ports.CodeGenerator
	now    func() time.Time
	ttl    time.Duration
	// expired runs after a stale open order was moved to EXPIRED by this registry.
	expired func(ctx context.Context, order *domain.Order)
}

// NewRegistry wires the registry; ttl <= 0 falls back to the default checkout window.
func NewRegistry(orders ports.OrderRepository, codes ports.CodeGenerator, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = domain.DefaultOrderTTL
	}
	return &Registry{orders: orders, codes: codes, now: time.Now, ttl: ttl}
}

// CreateOrder opens a PENDING order unless the buyer already has a live one for target.
func (r *Registry) CreateOrder(ctx context.Context, buyerID string, target purchase.Target, amount int64) (*domain.Order, error) {
	if err := r.releaseStale(ctx, buyerID, target); err != nil {
		return nil, err
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		order, err := domain.NewOrder(r.codes.Next(), buyerID, target, amount, r.now(), r.ttl)
		if err != nil {
			return nil, mapError(err)
		}
		created, err := r.orders.Create(ctx, order)
		switch {
		case err == nil:
			return created, nil
		case errors.Is(err, ports.ErrDuplicateCode):
			continue
		case errors.Is(err, ports.ErrOpenOrderExists):
			// lost a race against a concurrent checkout for the same purchase
			open, findErr := r.orders.FindOpen(ctx, buyerID, target)
			if findErr != nil {
				return nil, err
			}
			return nil, &OpenOrderError{Code: open.Code, ExpiresAt: open.ExpiresAt}
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, maxCodeAttempts)
}

// GetOrder loads an order by code.
func (r *Registry) GetOrder(ctx context.Context, code int64) (*domain.Order, error) {
	if code <= 0 {
		return nil, mapError(domain.ErrInvalidCode)
	}
	return r.orders.GetByCode(ctx, code)
}

func (r *Registry) releaseStale(ctx context.Context, buyerID string, target purchase.Target) error {
	open, err := r.orders.FindOpen(ctx, buyerID, target)
	if errors.Is(err, ports.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	now := r.now()
	if !open.IsExpired(now) {
		return &OpenOrderError{Code: open.Code, ExpiresAt: open.ExpiresAt}
	}
	stored, won, err := r.orders.Transition(ctx, open.Code, domain.Transition{
		To:      domain.StatusExpired,
		Channel: domain.ChannelExpiry,
		At:      now,
	})
	if err != nil {
		return err
	}
	if won && r.expired != nil {
		r.expired(ctx, stored)
	}
	return nil
}
