package gateway

import (
	"context"
	"errors"
	"fmt"

	gatewayclient "github.com/Apurer/course-marketplace-api/internal/clients/http/gateway"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
)

var _ ports.Gateway = (*Gateway)(nil)

// Gateway adapts the provider HTTP client to the payments port.
type Gateway struct {
	client *gatewayclient.Client
}

// New wires the provider client into the port adapter.
func New(client *gatewayclient.Client) *Gateway {
	return &Gateway{client: client}
}

func (g *Gateway) CreateSession(ctx context.Context, req ports.SessionRequest) (*ports.Session, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("payment gateway not configured")
	}
	link, err := g.client.CreatePaymentLink(ctx, gatewayclient.CreatePaymentRequest{
		OrderCode:   req.OrderCode,
		Amount:      req.Amount,
		Description: req.Description,
		ExpiredAt:   req.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return &ports.Session{CheckoutURL: link.CheckoutURL, QRPayload: link.QRCode, PaymentLinkID: link.PaymentLinkID}, nil
}

// QueryStatus reports an order the provider forgot as NOT_FOUND rather than an error.
func (g *Gateway) QueryStatus(ctx context.Context, code int64) (*ports.RemoteStatus, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("payment gateway not configured")
	}
	info, err := g.client.GetPaymentInfo(ctx, code)
	if errors.Is(err, gatewayclient.ErrOrderNotFound) {
		return &ports.RemoteStatus{Status: domain.StatusNotFound}, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &ports.RemoteStatus{
		Status:     ToStatus(info.Status),
		Amount:     info.Amount,
		AmountPaid: info.AmountPaid,
		Reference:  info.LastReference(),
	}, nil
}

// Cancel treats an order the provider already forgot as cancelled.
func (g *Gateway) Cancel(ctx context.Context, code int64, reason string) error {
	if g == nil || g.client == nil {
		return errors.New("payment gateway not configured")
	}
	_, err := g.client.CancelPaymentLink(ctx, code, reason)
	if err == nil || errors.Is(err, gatewayclient.ErrOrderNotFound) {
		return nil
	}
	return mapError(err)
}

// ToStatus maps provider statuses onto the order lifecycle; PROCESSING is still PENDING.
func ToStatus(status string) domain.Status {
	switch status {
	case gatewayclient.StatusPaid:
		return domain.StatusPaid
	case gatewayclient.StatusCancelled:
		return domain.StatusCancelled
	case gatewayclient.StatusExpired:
		return domain.StatusExpired
	default:
		return domain.StatusPending
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, gatewayclient.ErrUnavailable):
		return fmt.Errorf("%w: %w", ports.ErrGatewayUnavailable, err)
	case errors.Is(err, gatewayclient.ErrRejected):
		return fmt.Errorf("%w: %w", ports.ErrGatewayRejected, err)
	default:
		return err
	}
}
