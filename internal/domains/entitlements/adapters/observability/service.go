package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/domain"
	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

const tracerName = "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/adapters/observability/service"

// Service decorates the entitlements service with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
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

func New(inner ports.Service, opts ...Option) ports.Service {
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

func (s *Service) Grant(ctx context.Context, input ports.GrantInput) (*ports.GrantOutput, error) {
	ctx, span := s.tracer.Start(ctx, "EntitlementsService.Grant", trace.WithAttributes(
		attribute.String("buyer.id", input.BuyerID),
		attribute.String("purchase.target", input.Target.String()),
		attribute.Int64("order.code", input.OrderCode),
	))
	defer span.End()

	out, err := s.inner.Grant(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to grant entitlement",
			slog.String("buyer.id", input.BuyerID), slog.Int64("order.code", input.OrderCode))
	}
	span.SetAttributes(attribute.Bool("enrollment.created", out.Created))
	s.metrics.recordGrant(ctx, input.Target.Kind, out.Created)
	if out.Created {
		s.logInfo(ctx, "enrollment created", slog.String("enrollment.id", out.Enrollment.ID),
			slog.String("purchase.target", input.Target.String()), slog.Int64("order.code", input.OrderCode))
	} else {
		s.logInfo(ctx, "enrollment already held", slog.String("enrollment.id", out.Enrollment.ID), slog.Int64("order.code", input.OrderCode))
	}
	return out, nil
}

func (s *Service) HasEntitlement(ctx context.Context, buyerID string, target purchase.Target) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "EntitlementsService.HasEntitlement", trace.WithAttributes(attribute.String("purchase.target", target.String())))
	defer span.End()

	held, err := s.inner.HasEntitlement(ctx, buyerID, target)
	if err != nil {
		return false, s.handleError(ctx, span, err, "failed to check entitlement", slog.String("buyer.id", buyerID))
	}
	return held, nil
}

func (s *Service) Authorize(ctx context.Context, buyerID, courseID string) (*domain.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "EntitlementsService.Authorize", trace.WithAttributes(attribute.String("course.id", courseID)))
	defer span.End()

	decision, err := s.inner.Authorize(ctx, buyerID, courseID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to authorize course access",
			slog.String("buyer.id", buyerID), slog.String("course.id", courseID))
	}
	span.SetAttributes(attribute.Bool("access.allowed", decision.Allowed))
	s.metrics.recordDecision(ctx, decision)
	if !decision.Allowed {
		s.logInfo(ctx, "course access denied", slog.String("buyer.id", buyerID),
			slog.String("course.id", courseID), slog.String("reason", string(decision.Reason)))
	}
	return decision, nil
}

func (s *Service) ListForBuyer(ctx context.Context, buyerID string) ([]*domain.Enrollment, error) {
	ctx, span := s.tracer.Start(ctx, "EntitlementsService.ListForBuyer")
	defer span.End()

	list, err := s.inner.ListForBuyer(ctx, buyerID)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list enrollments", slog.String("buyer.id", buyerID))
	}
	span.SetAttributes(attribute.Int("enrollments.count", len(list)))
	return list, nil
}

func (s *Service) Refund(ctx context.Context, enrollmentID string) (*domain.Enrollment, error) {
	ctx, span := s.tracer.Start(ctx, "EntitlementsService.Refund", trace.WithAttributes(attribute.String("enrollment.id", enrollmentID)))
	defer span.End()

	e, err := s.inner.Refund(ctx, enrollmentID)
	if err != nil {
		return e, s.handleError(ctx, span, err, "failed to refund enrollment", slog.String("enrollment.id", enrollmentID))
	}
	s.logInfo(ctx, "enrollment refunded", slog.String("enrollment.id", enrollmentID), slog.String("purchase.target", e.Target.String()))
	return e, nil
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
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
	grants    metric.Int64Counter
	decisions metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	grants, _ := m.Int64Counter("entitlements.service.grants", metric.WithDescription("Grant calls by target kind and whether a row was created"))
	decisions, _ := m.Int64Counter("entitlements.service.access_decisions", metric.WithDescription("Course access decisions by outcome"))
	return serviceMetrics{grants: grants, decisions: decisions}
}

func (m serviceMetrics) recordGrant(ctx context.Context, kind purchase.Kind, created bool) {
	if m.grants != nil {
		m.grants.Add(ctx, 1, metric.WithAttributes(
			attribute.String("target.kind", string(kind)),
			attribute.Bool("created", created),
		))
	}
}

func (m serviceMetrics) recordDecision(ctx context.Context, d *domain.Decision) {
	if m.decisions == nil {
		return
	}
	outcome := "allowed"
	if !d.Allowed {
		outcome = string(d.Reason)
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

var _ ports.Service = (*Service)(nil)
