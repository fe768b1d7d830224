package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/platform/redisx"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var _ ports.OrderRepository = (*Repository)(nil)

// Repository serves settled orders from Redis. Only orders that can no longer change (terminal
// and not owing a grant) are cached, so status polling after settlement skips Postgres.
type Repository struct {
	inner ports.OrderRepository
	rdb   *redis.Client
	ttl   time.Duration
}

// NewRepository wraps inner; a nil client disables caching.
func NewRepository(inner ports.OrderRepository, rdb *redis.Client) *Repository {
	return &Repository{inner: inner, rdb: rdb, ttl: redisx.TTLSettledOrder}
}

type cachedOrder struct {
	Code        int64      `json:"code"`
	BuyerID     string     `json:"buyer_id"`
	TargetKind  string     `json:"target_kind"`
	TargetID    string     `json:"target_id"`
	Amount      int64      `json:"amount"`
	Reference   string     `json:"reference"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
	QRPayload   string     `json:"qr_payload,omitempty"`
	Status      string     `json:"status"`
	SettledVia  string     `json:"settled_via,omitempty"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
	PaidAmount  int64      `json:"paid_amount,omitempty"`
	GatewayRef  string     `json:"gateway_ref,omitempty"`
	GrantedAt   *time.Time `json:"granted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

func (r *Repository) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	return r.inner.Create(ctx, order)
}

func (r *Repository) GetByCode(ctx context.Context, code int64) (*domain.Order, error) {
	if order, ok := r.lookup(ctx, code); ok {
		return order, nil
	}
	order, err := r.inner.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	r.store(ctx, order)
	return order, nil
}

func (r *Repository) FindOpen(ctx context.Context, buyerID string, target purchase.Target) (*domain.Order, error) {
	return r.inner.FindOpen(ctx, buyerID, target)
}

func (r *Repository) AttachSession(ctx context.Context, code int64, checkoutURL, qrPayload string) error {
	return r.inner.AttachSession(ctx, code, checkoutURL, qrPayload)
}

func (r *Repository) Transition(ctx context.Context, code int64, t domain.Transition) (*domain.Order, bool, error) {
	order, won, err := r.inner.Transition(ctx, code, t)
	r.invalidate(ctx, code)
	return order, won, err
}

func (r *Repository) MarkGranted(ctx context.Context, code int64, at time.Time) error {
	err := r.inner.MarkGranted(ctx, code, at)
	r.invalidate(ctx, code)
	return err
}

func (r *Repository) PurgeSettled(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.inner.PurgeSettled(ctx, cutoff)
}

func (r *Repository) lookup(ctx context.Context, code int64) (*domain.Order, bool) {
	if r.rdb == nil {
		return nil, false
	}
	raw, err := r.rdb.Get(ctx, key(code)).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; anything else falls through to the store
		return nil, false
	}
	var cached cachedOrder
	if err := json.Unmarshal(raw, &cached); err != nil {
		r.invalidate(ctx, code)
		return nil, false
	}
	return cached.toDomain(), true
}

func (r *Repository) store(ctx context.Context, order *domain.Order) {
	if r.rdb == nil || !order.IsTerminal() || order.NeedsGrant() {
		return
	}
	raw, err := json.Marshal(fromDomain(order))
	if err != nil {
		return
	}
	_ = r.rdb.Set(ctx, key(order.Code), raw, r.ttl).Err()
}

func (r *Repository) invalidate(ctx context.Context, code int64) {
	if r.rdb == nil {
		return
	}
	_ = r.rdb.Del(ctx, key(code)).Err()
}

func key(code int64) string {
	return fmt.Sprintf(redisx.KeySettledOrder, code)
}

func fromDomain(order *domain.Order) cachedOrder {
	return cachedOrder{
		Code:        order.Code,
		BuyerID:     order.BuyerID,
		TargetKind:  string(order.Target.Kind),
		TargetID:    order.Target.ID,
		Amount:      order.Amount,
		Reference:   order.Reference,
		CheckoutURL: order.CheckoutURL,
		QRPayload:   order.QRPayload,
		Status:      string(order.Status),
		SettledVia:  string(order.SettledVia),
		SettledAt:   order.SettledAt,
		PaidAmount:  order.PaidAmount,
		GatewayRef:  order.GatewayRef,
		GrantedAt:   order.GrantedAt,
		CreatedAt:   order.CreatedAt,
		ExpiresAt:   order.ExpiresAt,
	}
}

func (c cachedOrder) toDomain() *domain.Order {
	return &domain.Order{
		Code:        c.Code,
		BuyerID:     c.BuyerID,
		Target:      purchase.Target{Kind: purchase.Kind(c.TargetKind), ID: c.TargetID},
		Amount:      c.Amount,
		Reference:   c.Reference,
		CheckoutURL: c.CheckoutURL,
		QRPayload:   c.QRPayload,
		Status:      domain.Status(c.Status),
		SettledVia:  domain.Channel(c.SettledVia),
		SettledAt:   c.SettledAt,
		PaidAmount:  c.PaidAmount,
		GatewayRef:  c.GatewayRef,
		GrantedAt:   c.GrantedAt,
		CreatedAt:   c.CreatedAt,
		ExpiresAt:   c.ExpiresAt,
	}
}
