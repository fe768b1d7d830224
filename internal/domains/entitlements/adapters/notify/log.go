package notify

import (
	"context"
	"log/slog"

	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
)

var _ ports.Notifier = (*LogNotifier)(nil)

// LogNotifier is the fallback when neither Kafka nor an email API is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyGranted(ctx context.Context, notice ports.GrantedNotice) error {
	if n.logger == nil {
		return nil
	}
	n.logger.LogAttrs(ctx, slog.LevelInfo, "enrollment confirmation",
		slog.String("enrollment.id", notice.EnrollmentID),
		slog.String("buyer.id", notice.BuyerID),
		slog.String("email", notice.Email),
		slog.String("purchase.target", notice.Target.String()),
		slog.Int64("order.code", notice.OrderCode),
	)
	return nil
}
