package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	"github.com/Apurer/course-marketplace-api/internal/clients/http/email"
	gatewayclient "github.com/Apurer/course-marketplace-api/internal/clients/http/gateway"
	entnotify "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/adapters/notify"
	entports "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	paymentsgateway "github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/external/gateway"
	"github.com/Apurer/course-marketplace-api/internal/platform/messaging"
	"github.com/Apurer/course-marketplace-api/internal/platform/migrations"
	platformobservability "github.com/Apurer/course-marketplace-api/internal/platform/observability"
	platformpostgres "github.com/Apurer/course-marketplace-api/internal/platform/postgres"
	"github.com/Apurer/course-marketplace-api/internal/platform/redisx"
)

// Run boots the marketplace HTTP API and blocks until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	var temporalClient client.Client
	if c, err := ConnectTemporal(cfg, instruments); err != nil {
		logger.Warn("Temporal unavailable", slog.String("error", err.Error()))
	} else {
		defer c.Close()
		temporalClient = c
	}

	app, cleanup, err := Open(ctx, cfg, instruments, temporalClient)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{Addr: cfg.Addr(), Handler: app.Router, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("marketplace API listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("marketplace API server exited", slog.String("addr", srv.Addr), slog.String("error", err.Error()))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down marketplace API")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Open connects the configured infrastructure and builds the App. The cleanup closes every
// connection Open made; the Temporal client stays owned by the caller.
func Open(ctx context.Context, cfg Config, instruments *platformobservability.Instruments, temporalClient client.Client) (*App, func(), error) {
	logger := effectiveLogger(instruments)
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, closeDB := platformpostgres.ConnectDSN(ctx, cfg.PostgresDSN, logger)
	closers = append(closers, closeDB)
	if db != nil {
		if err := migrations.Run(db); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	rdb, closeRedis := redisx.Connect(ctx, cfg.RedisAddr, logger)
	closers = append(closers, closeRedis)

	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeNotifier)

	gatewayClient, err := gatewayclient.NewClient(gatewayclient.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		ClientID:    cfg.Gateway.ClientID,
		APIKey:      cfg.Gateway.APIKey,
		ChecksumKey: cfg.Gateway.ChecksumKey,
		ReturnURL:   cfg.Gateway.ReturnURL,
		CancelURL:   cfg.Gateway.CancelURL,
		Timeout:     cfg.Gateway.Timeout,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	app, err := Build(ctx, cfg, Deps{
		DB:          db,
		Redis:       rdb,
		Gateway:     paymentsgateway.New(gatewayClient),
		Notifier:    notifier,
		Temporal:    temporalClient,
		Instruments: instruments,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, app.drain)
	return app, cleanup, nil
}

// buildNotifier prefers Kafka (cmd/notifier sends the email), then a direct email API, then logs.
func buildNotifier(cfg Config, logger *slog.Logger) (entports.Notifier, func(), error) {
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("entitlement notifications go to kafka", slog.String("topic", cfg.KafkaTopic))
		return entnotify.NewKafkaNotifier(producer, serviceName), func() { _ = producer.Close() }, nil
	}
	if cfg.EmailAPIURL != "" {
		sender, err := email.NewClient(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom, nil)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("entitlement notifications sent by email")
		return entnotify.NewEmailNotifier(sender), func() {}, nil
	}
	logger.Warn("KAFKA_BROKERS and EMAIL_API_URL not set, entitlement notifications are only logged")
	return entnotify.NewLogNotifier(logger), func() {}, nil
}

// ConnectTemporal dials the configured Temporal namespace with tracing and structured logging.
func ConnectTemporal(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{
		Tracer: instruments.Tracer("temporal-client"),
	})
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}
