package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

func TestSessionRequest_ToTarget(t *testing.T) {
	target, err := SessionRequest{TargetKind: " Level ", TargetID: "B1"}.ToTarget()
	require.NoError(t, err)
	require.Equal(t, purchase.Level("B1"), target)

	_, err = SessionRequest{TargetKind: "bundle", TargetID: "x"}.ToTarget()
	require.ErrorIs(t, err, purchase.ErrInvalidKind)
}

func TestFromOutcome_ReportsGrantAndReview(t *testing.T) {
	now := time.Now()
	order, err := domain.NewOrder(1234567890, "buyer-1", purchase.Level("B1"), 10000, now, domain.DefaultOrderTTL)
	require.NoError(t, err)
	order.Apply(domain.Transition{To: domain.StatusPaid, Channel: domain.ChannelWebhook, PaidAmount: 10000, At: now})
	order.GrantedAt = &now

	status := FromOutcome(&ports.Outcome{Order: order, Transitioned: true})
	require.Equal(t, "PAID", status.Status)
	require.True(t, status.Granted)
	require.Equal(t, "webhook", status.SettledVia)
	require.False(t, status.Review)

	order.GrantedAt = nil
	status = FromOutcome(&ports.Outcome{Order: order, NeedsReview: true})
	require.False(t, status.Granted)
	require.True(t, status.Review)
}
