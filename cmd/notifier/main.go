package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"

	"github.com/Apurer/course-marketplace-api/internal/clients/http/email"
	entnotify "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/adapters/notify"
	entports "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/platform/messaging"
	platformobservability "github.com/Apurer/course-marketplace-api/internal/platform/observability"
)

const (
	serviceName = "course-marketplace-notifier"
	groupID     = "marketplace-notifier"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	brokers := splitList(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		logger.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}
	topic := envDefault("KAFKA_TOPIC", entnotify.TopicGranted)

	var notifier entports.Notifier = entnotify.NewLogNotifier(logger)
	if url := strings.TrimSpace(os.Getenv("EMAIL_API_URL")); url != "" {
		sender, err := email.NewClient(url, os.Getenv("EMAIL_API_KEY"), envDefault("EMAIL_FROM", "no-reply@course-marketplace.local"), nil)
		if err != nil {
			logger.Error("invalid email configuration", slog.String("error", err.Error()))
			os.Exit(1)
		}
		notifier = entnotify.NewEmailNotifier(sender)
	} else {
		logger.Warn("EMAIL_API_URL not set, confirmations are only logged")
	}

	consumer := messaging.NewConsumer(brokers, topic, groupID)
	defer consumer.Close()

	logger.Info("notifier consuming", slog.String("topic", topic), slog.String("group", groupID))
	if err := consumer.Consume(ctx, handle(notifier, logger)); err != nil {
		logger.Error("notifier stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("notifier stopped")
}

// handle never fails the consumer: undecodable events and undeliverable emails are logged and
// committed, since confirmations are best effort and must not block later ones.
func handle(notifier entports.Notifier, logger *slog.Logger) messaging.Handler {
	return func(ctx context.Context, payload []byte) error {
		notice, eventID, err := entnotify.DecodeGranted(payload)
		if err != nil {
			logger.WarnContext(ctx, "skipping undecodable event", slog.String("event.id", eventID), slog.String("error", err.Error()))
			return nil
		}
		send := func() error {
			err := notifier.NotifyGranted(ctx, notice)
			if errors.Is(err, entnotify.ErrNoRecipient) {
				return backoff.Permanent(err)
			}
			return err
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
		if err := backoff.Retry(send, policy); err != nil {
			logger.ErrorContext(ctx, "confirmation not delivered",
				slog.String("event.id", eventID),
				slog.String("enrollment.id", notice.EnrollmentID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
