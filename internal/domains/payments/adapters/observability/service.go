package observability

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	paymentsapp "github.com/Apurer/course-marketplace-api/internal/domains/payments/application"
	paymentsdomain "github.com/Apurer/course-marketplace-api/internal/domains/payments/domain"
	paymentsports "github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

const tracerName = "github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/observability/service"

// Service decorates the payments service with tracing, logging, and metrics.
type Service struct {
	inner   paymentsports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wraps the core payments service.
func New(inner paymentsports.Service, opts ...Option) paymentsports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return s
}

func (s *Service) CreateSession(ctx context.Context, buyerID string, target purchase.Target) (*paymentsports.CheckoutSession, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentsService.CreateSession",
		trace.WithAttributes(attribute.String("buyer.id", buyerID), attribute.String("purchase.target", target.String())))
	defer span.End()

	s.logInfo(ctx, "opening checkout session", slog.String("buyer.id", buyerID), slog.String("purchase.target", target.String()))
	session, err := s.inner.CreateSession(ctx, buyerID, target)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to open checkout session",
			slog.String("buyer.id", buyerID), slog.String("purchase.target", target.String()))
	}
	span.SetAttributes(attribute.Int64("order.code", session.Order.Code))
	s.metrics.recordSession(ctx, target.Kind)
	if !session.Watched {
		s.logWarn(ctx, "settlement watcher not started; relying on webhook and client polling",
			slog.Int64("order.code", session.Order.Code))
	}
	s.logInfo(ctx, "checkout session opened", slog.Int64("order.code", session.Order.Code), slog.Int64("amount", session.Order.Amount))
	return session, nil
}

func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (*paymentsports.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentsService.HandleWebhook", trace.WithAttributes(attribute.Int("webhook.bytes", len(rawBody))))
	defer span.End()

	outcome, err := s.inner.HandleWebhook(ctx, rawBody, signature)
	switch {
	case errors.Is(err, paymentsapp.ErrInvalidSignature):
		s.metrics.recordWebhookRejected(ctx, "signature")
		s.logWarn(ctx, "webhook signature rejected")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	case err != nil && paymentsapp.IsBenignRejection(err):
		s.metrics.recordWebhookRejected(ctx, "benign")
		s.logWarn(ctx, "webhook ignored", slog.String("error", err.Error()))
		return nil, err
	}
	return s.finish(ctx, span, paymentsdomain.ChannelWebhook, outcome, err)
}

func (s *Service) Poll(ctx context.Context, code int64, buyerID string) (*paymentsports.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentsService.Poll", trace.WithAttributes(attribute.Int64("order.code", code)))
	defer span.End()

	outcome, err := s.inner.Poll(ctx, code, buyerID)
	return s.finish(ctx, span, paymentsdomain.ChannelPoll, outcome, err)
}

func (s *Service) Confirm(ctx context.Context, code int64, buyerID string) (*paymentsports.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentsService.Confirm", trace.WithAttributes(attribute.Int64("order.code", code)))
	defer span.End()

	s.logInfo(ctx, "manual payment confirmation", slog.Int64("order.code", code), slog.String("buyer.id", buyerID))
	outcome, err := s.inner.Confirm(ctx, code, buyerID)
	return s.finish(ctx, span, paymentsdomain.ChannelManualConfirm, outcome, err)
}

func (s *Service) Sweep(ctx context.Context, code int64) (*paymentsports.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentsService.Sweep", trace.WithAttributes(attribute.Int64("order.code", code)))
	defer span.End()

	outcome, err := s.inner.Sweep(ctx, code)
	return s.finish(ctx, span, paymentsdomain.ChannelSweep, outcome, err)
}

func (s *Service) Cancel(ctx context.Context, code int64, buyerID, reason string) (*paymentsports.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentsService.Cancel", trace.WithAttributes(attribute.Int64("order.code", code)))
	defer span.End()

	s.logInfo(ctx, "cancelling order", slog.Int64("order.code", code), slog.String("reason", reason))
	outcome, err := s.inner.Cancel(ctx, code, buyerID, reason)
	return s.finish(ctx, span, paymentsdomain.ChannelCancel, outcome, err)
}

func (s *Service) GetOrder(ctx context.Context, code int64, buyerID string) (*paymentsdomain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentsService.GetOrder", trace.WithAttributes(attribute.Int64("order.code", code)))
	defer span.End()

	order, err := s.inner.GetOrder(ctx, code, buyerID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.Int64("order.code", code))
	}
	return order, nil
}

// finish logs and counts what a reconciliation step did.
func (s *Service) finish(ctx context.Context, span trace.Span, channel paymentsdomain.Channel, outcome *paymentsports.Outcome, err error) (*paymentsports.Outcome, error) {
	if outcome != nil && outcome.Order != nil {
		order := outcome.Order
		attrs := []slog.Attr{
			slog.Int64("order.code", order.Code),
			slog.String("order.status", string(order.Status)),
			slog.String("channel", string(channel)),
		}
		span.SetAttributes(attribute.String("order.status", string(order.Status)), attribute.Bool("order.transitioned", outcome.Transitioned))
		if outcome.Transitioned {
			s.metrics.recordTransition(ctx, order.Status, order.SettledVia)
			s.logInfo(ctx, "order settled", append(attrs, slog.String("settled_via", string(order.SettledVia)))...)
		}
		if outcome.Grant != nil && outcome.Grant.Created {
			s.metrics.recordGrant(ctx, channel)
			s.logInfo(ctx, "entitlement granted", append(attrs, slog.String("buyer.id", order.BuyerID), slog.String("purchase.target", order.Target.String()))...)
		}
		if outcome.NeedsReview {
			s.metrics.recordReview(ctx, "underpaid")
			s.logWarn(ctx, "payment below price; grant withheld for review",
				append(attrs, slog.Int64("amount", order.Amount), slog.Int64("paid_amount", order.PaidAmount))...)
		}
		if outcome.LatePayment {
			s.metrics.recordReview(ctx, "late_payment")
			s.logWarn(ctx, "gateway reports PAID for an order that already settled otherwise", attrs...)
		}
	}
	if err != nil {
		if errors.Is(err, paymentsapp.ErrGrantFailed) {
			s.metrics.recordGrantFailure(ctx, channel)
		}
		return outcome, s.handleError(ctx, span, err, "payment reconciliation failed", slog.String("channel", string(channel)))
	}
	return outcome, nil
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logWarn(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

type serviceMetrics struct {
	sessions          metric.Int64Counter
	transitions       metric.Int64Counter
	grants            metric.Int64Counter
	grantFailures     metric.Int64Counter
	reviews           metric.Int64Counter
	webhookRejections metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	sessions, _ := m.Int64Counter("payments.service.sessions_created", metric.WithDescription("Checkout sessions opened"))
	transitions, _ := m.Int64Counter("payments.service.order_transitions", metric.WithDescription("Orders leaving PENDING, by status and channel"))
	grants, _ := m.Int64Counter("payments.service.grants_created", metric.WithDescription("Entitlements created from PAID orders"))
	grantFailures, _ := m.Int64Counter("payments.service.grant_failures", metric.WithDescription("Grant attempts that failed and await retry"))
	reviews, _ := m.Int64Counter("payments.service.review_flags", metric.WithDescription("Payments flagged for manual review"))
	webhookRejections, _ := m.Int64Counter("payments.service.webhook_rejections", metric.WithDescription("Webhooks rejected before reconciliation"))
	return serviceMetrics{
		sessions:          sessions,
		transitions:       transitions,
		grants:            grants,
		grantFailures:     grantFailures,
		reviews:           reviews,
		webhookRejections: webhookRejections,
	}
}

func (m serviceMetrics) recordSession(ctx context.Context, kind purchase.Kind) {
	if m.sessions != nil {
		m.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("target.kind", string(kind))))
	}
}

func (m serviceMetrics) recordTransition(ctx context.Context, status paymentsdomain.Status, via paymentsdomain.Channel) {
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("order.status", string(status)),
			attribute.String("channel", string(via)),
		))
	}
}

func (m serviceMetrics) recordGrant(ctx context.Context, channel paymentsdomain.Channel) {
	if m.grants != nil {
		m.grants.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", string(channel))))
	}
}

func (m serviceMetrics) recordGrantFailure(ctx context.Context, channel paymentsdomain.Channel) {
	if m.grantFailures != nil {
		m.grantFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", string(channel))))
	}
}

func (m serviceMetrics) recordReview(ctx context.Context, reason string) {
	if m.reviews != nil {
		m.reviews.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

func (m serviceMetrics) recordWebhookRejected(ctx context.Context, reason string) {
	if m.webhookRejections != nil {
		m.webhookRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

var _ paymentsports.Service = (*Service)(nil)
