// Package collaborators adapts the catalog and entitlements services to the ports the
// payments context depends on.
package collaborators

import (
	"context"
	"errors"
	"fmt"

	catalogapp "github.com/Apurer/course-marketplace-api/internal/domains/catalog/application"
	catalogports "github.com/Apurer/course-marketplace-api/internal/domains/catalog/ports"
	entports "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var (
	_ ports.Pricing = (*Pricing)(nil)
	_ ports.Granter = (*Granter)(nil)
)

// Pricing quotes orders from the catalog.
type Pricing struct {
	catalog catalogports.Service
}

func NewPricing(catalog catalogports.Service) *Pricing {
	return &Pricing{catalog: catalog}
}

func (p *Pricing) Quote(ctx context.Context, target purchase.Target) (*ports.Offer, error) {
	offer, err := p.catalog.Quote(ctx, target)
	switch {
	case errors.Is(err, catalogports.ErrNotFound),
		errors.Is(err, catalogapp.ErrUnavailable),
		errors.Is(err, catalogapp.ErrInvalidInput):
		return nil, fmt.Errorf("%w: %w", ports.ErrTargetUnavailable, err)
	case err != nil:
		return nil, err
	}
	return &ports.Offer{Target: offer.Target, Title: offer.Title, Amount: offer.Amount}, nil
}

// Granter hands PAID orders to the entitlements context.
type Granter struct {
	entitlements entports.Service
}

func NewGranter(entitlements entports.Service) *Granter {
	return &Granter{entitlements: entitlements}
}

func (g *Granter) Grant(ctx context.Context, req ports.GrantRequest) (*ports.GrantResult, error) {
	out, err := g.entitlements.Grant(ctx, entports.GrantInput{
		BuyerID:   req.BuyerID,
		Target:    req.Target,
		OrderCode: req.OrderCode,
		Amount:    req.Amount,
		PaidAt:    req.PaidAt,
	})
	if err != nil {
		return nil, err
	}
	return &ports.GrantResult{
		Created:       out.Created,
		EnrollmentID:  out.Enrollment.ID,
		EntitlementOf: out.Enrollment.Target,
	}, nil
}

func (g *Granter) HasEntitlement(ctx context.Context, buyerID string, target purchase.Target) (bool, error) {
	return g.entitlements.HasEntitlement(ctx, buyerID, target)
}
