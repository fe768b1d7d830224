package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	paymentspostgres "github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/persistence/postgres"
	userpostgres "github.com/Apurer/course-marketplace-api/internal/domains/users/adapters/persistence/postgres"
	platformpostgres "github.com/Apurer/course-marketplace-api/internal/platform/postgres"
	settlementworkflows "github.com/Apurer/course-marketplace-api/internal/platform/temporal/workflows/payments"
)

func main() {
	_ = godotenv.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	db, cleanup := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanup()
	if db == nil {
		log.Fatal("POSTGRES_DSN not set or connection failed; cannot purge orders")
	}

	now := time.Now().UTC()
	orders, err := paymentspostgres.NewRepository(db).PurgeSettled(ctx, now.Add(-retentionFromEnv()))
	if err != nil {
		log.Fatalf("failed to purge settled orders: %v", err)
	}
	sessions, err := userpostgres.NewSessionStore(db).PurgeExpired(ctx, now)
	if err != nil {
		log.Fatalf("failed to purge buyer sessions: %v", err)
	}
	logger.Info("purge completed", slog.Int64("orders", orders), slog.Int64("sessions", sessions))
}

// retentionFromEnv is how long a settled order outlives its expiry; it defaults to the
// settlement grace so nothing still being swept is removed.
func retentionFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("ORDER_RETENTION"))
	if raw == "" {
		return settlementworkflows.DefaultGrace
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < settlementworkflows.DefaultGrace {
		return settlementworkflows.DefaultGrace
	}
	return d
}
