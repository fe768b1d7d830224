package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

// Service orchestrates checkout sessions on top of the registry and the reconciler.
type Service struct {
	*Reconciler
	registry *Registry
	pricing  ports.Pricing
	watcher  ports.SettlementWatcher
}

// NewService wires the payments use cases. A nil watcher leaves settlement to the webhook and
// client channels.
func NewService(reconciler *Reconciler, registry *Registry, pricing ports.Pricing, watcher ports.SettlementWatcher) *Service {
	if watcher == nil {
		watcher = ports.NoopSettlementWatcher
	}
	s := &Service{Reconciler: reconciler, registry: registry, pricing: pricing, watcher: watcher}
	registry.now = reconciler.now
	registry.expired = func(ctx context.Context, order *domain.Order) {
		reconciler.cancelRemote(ctx, order.Code, "order expired")
	}
	return s
}

// CreateSession prices the target, opens an order and asks the gateway for a checkout.
func (s *Service) CreateSession(ctx context.Context, buyerID string, target purchase.Target) (*ports.CheckoutSession, error) {
	if buyerID == "" {
		return nil, mapError(domain.ErrInvalidBuyer)
	}
	if err := target.Validate(); err != nil {
		return nil, mapError(err)
	}
	offer, err := s.pricing.Quote(ctx, target)
	if err != nil {
		return nil, err
	}
	// the catalog's identity is the one entitlements are keyed on
	target = offer.Target
	entitled, err := s.granter.HasEntitlement(ctx, buyerID, target)
	if err != nil {
		return nil, err
	}
	if entitled {
		return nil, ports.ErrAlreadyEntitled
	}
	order, err := s.registry.CreateOrder(ctx, buyerID, target, offer.Amount)
	if err != nil {
		return nil, err
	}
	session, err := s.gateway.CreateSession(ctx, ports.SessionRequest{
		OrderCode:   order.Code,
		Amount:      order.Amount,
		Description: order.Reference,
		BuyerID:     buyerID,
		ExpiresAt:   order.ExpiresAt,
	})
	if err != nil {
		s.abandon(ctx, order)
		return nil, err
	}
	if err := s.orders.AttachSession(ctx, order.Code, session.CheckoutURL, session.QRPayload); err != nil {
		s.abandon(ctx, order)
		s.cancelRemote(ctx, order.Code, "checkout not stored")
		return nil, err
	}
	order.CheckoutURL = session.CheckoutURL
	order.QRPayload = session.QRPayload
	watched := s.watcher.Watch(ctx, order.Code, order.ExpiresAt) == nil
	return &ports.CheckoutSession{Order: order, Watched: watched}, nil
}

// Cancel asks the gateway to drop the checkout, then settles the order as CANCELLED. A gateway
// failure leaves the order PENDING.
func (s *Service) Cancel(ctx context.Context, code int64, buyerID, reason string) (*ports.Outcome, error) {
	order, err := s.ownedOrder(ctx, code, buyerID)
	if err != nil {
		return nil, err
	}
	if order.IsTerminal() {
		return s.settle(ctx, &ports.Outcome{Order: order})
	}
	if reason == "" {
		reason = "cancelled by buyer"
	}
	if err := s.gateway.Cancel(ctx, code, reason); err != nil {
		return nil, err
	}
	return s.ApplyStatus(ctx, order, domain.Event{
		OrderCode:  code,
		Status:     domain.StatusCancelled,
		Channel:    domain.ChannelCancel,
		ObservedAt: s.now(),
	})
}

// GetOrder returns the buyer's order without contacting the gateway.
func (s *Service) GetOrder(ctx context.Context, code int64, buyerID string) (*domain.Order, error) {
	return s.ownedOrder(ctx, code, buyerID)
}

// abandon closes an order whose checkout could not be opened so it does not block a retry.
func (s *Service) abandon(ctx context.Context, order *domain.Order) {
	_, _, err := s.orders.Transition(ctx, order.Code, domain.Transition{
		To:      domain.StatusCancelled,
		Channel: domain.ChannelSession,
		At:      s.now(),
	})
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		s.record(ctx, domain.Event{OrderCode: order.Code, Status: domain.StatusCancelled, Channel: domain.ChannelSession},
			&ports.Outcome{Order: order}, fmt.Errorf("abandon order: %w", err))
	}
}

var _ ports.Service = (*Service)(nil)
