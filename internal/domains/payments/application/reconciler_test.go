package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

func webhookBody(code int64, status string, amount int64) []byte {
	return []byte(fmt.Sprintf(`{"orderCode":%d,"status":%q,"amount":%d,"reference":"FT-99"}`, code, status, amount))
}

func TestHandleWebhook_PaidGrantsOnceAcrossReplays(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(1234567890, "buyer-1", purchase.Level("B1"), 10000)

	first, err := h.service.HandleWebhook(ctx, webhookBody(1234567890, "PAID", 10000), testSignature)
	require.NoError(t, err)
	require.True(t, first.Transitioned)
	require.Equal(t, domain.StatusPaid, first.Order.Status)
	require.Equal(t, domain.ChannelWebhook, first.Order.SettledVia)
	require.NotNil(t, first.Grant)
	require.True(t, first.Grant.Created)
	require.NotNil(t, first.Order.GrantedAt)

	replay, err := h.service.HandleWebhook(ctx, webhookBody(1234567890, "PAID", 10000), testSignature)
	require.NoError(t, err)
	require.False(t, replay.Transitioned)
	require.Equal(t, domain.StatusPaid, replay.Order.Status)
	require.Nil(t, replay.Grant)
	require.Equal(t, 1, h.granter.createdCount())
	require.Equal(t, 1, h.granter.calls)
}

func TestHandleWebhook_SignatureCheckedBeforeAnyRead(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(42, "buyer-1", purchase.Level("B1"), 10000)

	_, err := h.service.HandleWebhook(ctx, webhookBody(42, "PAID", 10000), "forged")
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = h.service.HandleWebhook(ctx, webhookBody(42, "PAID", 10000), "")
	require.ErrorIs(t, err, ErrInvalidSignature)

	require.Zero(t, h.repo.reads.Load())
	order, err := h.repo.Repository.GetByCode(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, order.Status)
	require.Zero(t, h.granter.calls)
	require.Empty(t, h.events.ForOrder(42))
}

func TestHandleWebhook_BenignRejections(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.service.HandleWebhook(ctx, []byte(`{not json`), testSignature)
	require.ErrorIs(t, err, ErrMalformedEvent)
	require.True(t, IsBenignRejection(err))

	_, err = h.service.HandleWebhook(ctx, []byte(`{"orderCode":7,"status":"REFUNDED"}`), testSignature)
	require.ErrorIs(t, err, ErrMalformedEvent)

	_, err = h.service.HandleWebhook(ctx, webhookBody(999, "PAID", 10000), testSignature)
	require.ErrorIs(t, err, ports.ErrNotFound)
	require.True(t, IsBenignRejection(err))
}

func TestHandleWebhook_SuccessCodeWithoutStatusMeansPaid(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(77, "buyer-1", purchase.Course("c-1"), 5000)

	outcome, err := h.service.HandleWebhook(ctx, []byte(`{"orderCode":77,"code":"00","amount":5000}`), testSignature)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, outcome.Order.Status)
	require.Equal(t, 1, h.granter.createdCount())
}

func TestApplyStatus_TerminalOrderIsNoop(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	order := h.seed(10, "buyer-1", purchase.Level("A2"), 10000)

	cancelled, err := h.service.ApplyStatus(ctx, order, domain.Event{OrderCode: 10, Status: domain.StatusCancelled, Channel: domain.ChannelCancel})
	require.NoError(t, err)
	require.True(t, cancelled.Transitioned)

	for _, status := range []domain.Status{domain.StatusPaid, domain.StatusExpired, domain.StatusPending, domain.StatusNotFound} {
		outcome, err := h.service.ApplyStatus(ctx, cancelled.Order, domain.Event{OrderCode: 10, Status: status, Channel: domain.ChannelPoll})
		require.NoError(t, err)
		require.False(t, outcome.Transitioned)
		require.Equal(t, domain.StatusCancelled, outcome.Order.Status)
	}
	require.Zero(t, h.granter.calls)
}

func TestApplyStatus_StaleSnapshotLosesCompareAndSet(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	snapshot := h.seed(11, "buyer-1", purchase.Level("A2"), 10000)

	_, err := h.service.ApplyStatus(ctx, snapshot, domain.Event{OrderCode: 11, Status: domain.StatusExpired, Channel: domain.ChannelSweep})
	require.NoError(t, err)

	// snapshot still says PENDING; the stored row does not
	outcome, err := h.service.ApplyStatus(ctx, snapshot, domain.Event{OrderCode: 11, Status: domain.StatusPaid, Channel: domain.ChannelWebhook})
	require.NoError(t, err)
	require.False(t, outcome.Transitioned)
	require.Equal(t, domain.StatusExpired, outcome.Order.Status)
	require.True(t, outcome.LatePayment)
	require.Zero(t, h.granter.calls)
}

func TestRace_WebhookAndConfirmConverge(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness()
		ctx := context.Background()
		h.seed(500, "buyer-1", purchase.Level("B1"), 10000)
		h.gateway.set(domain.StatusPaid, 10000)

		var wg sync.WaitGroup
		results := make([]*ports.Outcome, 2)
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0], errs[0] = h.service.HandleWebhook(ctx, webhookBody(500, "PAID", 10000), testSignature)
		}()
		go func() {
			defer wg.Done()
			results[1], errs[1] = h.service.Confirm(ctx, 500, "buyer-1")
		}()
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		require.Equal(t, domain.StatusPaid, results[0].Order.Status)
		require.Equal(t, domain.StatusPaid, results[1].Order.Status)
		require.NotEqual(t, results[0].Transitioned, results[1].Transitioned, "exactly one channel wins the transition")
		require.Equal(t, 1, h.granter.createdCount())
	}
}

func TestPoll_ExpiredOrderExpiresAndNeverGrants(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(20, "buyer-1", purchase.Level("B2"), 10000)
	h.clock.Advance(16 * time.Minute)
	// the money lands after the window closed
	h.gateway.set(domain.StatusPaid, 10000)

	outcome, err := h.service.Poll(ctx, 20, "buyer-1")
	require.NoError(t, err)
	require.True(t, outcome.Transitioned)
	require.True(t, outcome.LatePayment)
	require.Equal(t, domain.StatusExpired, outcome.Order.Status)
	require.Equal(t, domain.ChannelExpiry, outcome.Order.SettledVia)
	require.Equal(t, []int64{20}, h.gateway.cancelled())
	require.Nil(t, outcome.Grant)

	records := h.events.ForOrder(20)
	require.Len(t, records, 1)
	require.Equal(t, domain.StatusPaid, records[0].Reported)
	require.Equal(t, domain.StatusExpired, records[0].Resulting)

	again, err := h.service.Poll(ctx, 20, "buyer-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusExpired, again.Order.Status)
	require.Zero(t, h.granter.calls)
}

func TestPoll_ExpiredOrderExpiresWhileGatewayIsDown(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(26, "buyer-1", purchase.Level("B2"), 10000)
	h.clock.Advance(16 * time.Minute)
	h.gateway.queryErr = fmt.Errorf("%w: connection reset", ports.ErrGatewayUnavailable)

	outcome, err := h.service.Poll(ctx, 26, "buyer-1")
	require.NoError(t, err)
	require.True(t, outcome.Transitioned)
	require.Equal(t, domain.StatusExpired, outcome.Order.Status)
	require.Equal(t, domain.ChannelExpiry, outcome.Order.SettledVia)

	order, err := h.service.GetOrder(ctx, 26, "buyer-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusExpired, order.Status)
	require.Zero(t, h.granter.calls)
}

func TestWebhook_PaidAfterDeadlineIsLatePayment(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	order := h.seed(27, "buyer-1", purchase.Level("B2"), 10000)
	h.clock.Advance(16 * time.Minute)

	outcome, err := h.service.ApplyStatus(ctx, order, domain.Event{OrderCode: 27, Status: domain.StatusPaid, AmountPaid: 10000, Channel: domain.ChannelWebhook})
	require.NoError(t, err)
	require.True(t, outcome.Transitioned)
	require.True(t, outcome.LatePayment)
	require.Equal(t, domain.StatusExpired, outcome.Order.Status)
	require.Zero(t, h.granter.calls)
}

func TestPoll_NotFoundIsTreatedAsExpired(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(21, "buyer-1", purchase.Level("B2"), 10000)
	h.gateway.set(domain.StatusNotFound, 0)

	outcome, err := h.service.Poll(ctx, 21, "buyer-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusExpired, outcome.Order.Status)
	records := h.events.ForOrder(21)
	require.Len(t, records, 1)
	require.Equal(t, domain.StatusNotFound, records[0].Reported)
	require.Equal(t, domain.StatusExpired, records[0].Resulting)
}

func TestPoll_GatewayUnavailableLeavesOrderUntouched(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(22, "buyer-1", purchase.Level("B2"), 10000)
	h.gateway.queryErr = fmt.Errorf("%w: connection reset", ports.ErrGatewayUnavailable)

	_, err := h.service.Poll(ctx, 22, "buyer-1")
	require.ErrorIs(t, err, ports.ErrGatewayUnavailable)

	order, err := h.service.GetOrder(ctx, 22, "buyer-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, order.Status)
}

func TestPoll_PendingOrderStaysPending(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(23, "buyer-1", purchase.Level("B2"), 10000)

	outcome, err := h.service.Poll(ctx, 23, "buyer-1")
	require.NoError(t, err)
	require.False(t, outcome.Transitioned)
	require.Equal(t, domain.StatusPending, outcome.Order.Status)
}

func TestPollAndConfirm_ForeignOrderLooksMissing(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(24, "buyer-1", purchase.Level("B2"), 10000)
	h.gateway.set(domain.StatusPaid, 10000)

	_, err := h.service.Poll(ctx, 24, "intruder")
	require.ErrorIs(t, err, ports.ErrNotFound)
	_, err = h.service.Confirm(ctx, 24, "intruder")
	require.ErrorIs(t, err, ports.ErrNotFound)
	require.Zero(t, h.gateway.queryCount())
}

func TestConfirm_TrustsGatewayNotClient(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(25, "buyer-1", purchase.Level("B2"), 10000)

	outcome, err := h.service.Confirm(ctx, 25, "buyer-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, outcome.Order.Status)
	require.Equal(t, 1, h.gateway.queryCount())
	require.Zero(t, h.granter.calls)
}

func TestGrantFailure_KeepsOrderPaidAndRetriesOnNextChannel(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(30, "buyer-1", purchase.Level("C1"), 10000)
	h.granter.failN = 1

	outcome, err := h.service.HandleWebhook(ctx, webhookBody(30, "PAID", 10000), testSignature)
	require.ErrorIs(t, err, ErrGrantFailed)
	require.NotNil(t, outcome)
	require.Equal(t, domain.StatusPaid, outcome.Order.Status)
	require.True(t, outcome.Order.NeedsGrant())

	retried, err := h.service.Poll(ctx, 30, "buyer-1")
	require.NoError(t, err)
	require.False(t, retried.Transitioned)
	require.NotNil(t, retried.Grant)
	require.True(t, retried.Grant.Created)
	require.NotNil(t, retried.Order.GrantedAt)
	require.Equal(t, 1, h.granter.createdCount())
	require.Zero(t, h.gateway.queryCount(), "a PAID order is not re-queried")
}

func TestUnderpayment_WithholdsGrantAndFlagsReview(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(31, "buyer-1", purchase.Level("C1"), 10000)

	outcome, err := h.service.HandleWebhook(ctx, webhookBody(31, "PAID", 4000), testSignature)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, outcome.Order.Status)
	require.True(t, outcome.NeedsReview)
	require.Nil(t, outcome.Grant)
	require.Zero(t, h.granter.calls)
	require.Equal(t, int64(4000), outcome.Order.PaidAmount)
}

func TestSweep_SettlesWithoutBuyer(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(32, "buyer-1", purchase.Course("c-9"), 10000)
	h.gateway.set(domain.StatusPaid, 10000)

	outcome, err := h.service.Sweep(ctx, 32)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, outcome.Order.Status)
	require.Equal(t, domain.ChannelSweep, outcome.Order.SettledVia)
	require.Equal(t, 1, h.granter.createdCount())
}
