package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	"gorm.io/gorm"

	marketplaceserver "github.com/Apurer/course-marketplace-api/go"

	catalogmemory "github.com/Apurer/course-marketplace-api/internal/domains/catalog/adapters/memory"
	catalogpostgres "github.com/Apurer/course-marketplace-api/internal/domains/catalog/adapters/persistence/postgres"
	catalogapp "github.com/Apurer/course-marketplace-api/internal/domains/catalog/application"
	catalogports "github.com/Apurer/course-marketplace-api/internal/domains/catalog/ports"

	entcollab "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/adapters/collaborators"
	entmemory "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/adapters/memory"
	entnotify "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/adapters/notify"
	entobs "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/adapters/observability"
	entpostgres "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/adapters/persistence/postgres"
	entapp "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/application"
	entports "github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"

	paymentscache "github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/cache"
	paymentscollab "github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/collaborators"
	paymentsmemory "github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/memory"
	paymentsobs "github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/observability"
	paymentspostgres "github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/persistence/postgres"
	paymentsworkflows "github.com/Apurer/course-marketplace-api/internal/domains/payments/adapters/workflows"
	paymentsapp "github.com/Apurer/course-marketplace-api/internal/domains/payments/application"
	paymentsports "github.com/Apurer/course-marketplace-api/internal/domains/payments/ports"

	usermemory "github.com/Apurer/course-marketplace-api/internal/domains/users/adapters/memory"
	userobs "github.com/Apurer/course-marketplace-api/internal/domains/users/adapters/observability"
	userpostgres "github.com/Apurer/course-marketplace-api/internal/domains/users/adapters/persistence/postgres"
	userapp "github.com/Apurer/course-marketplace-api/internal/domains/users/application"
	userports "github.com/Apurer/course-marketplace-api/internal/domains/users/ports"

	"github.com/Apurer/course-marketplace-api/internal/platform/auth"
	platformobservability "github.com/Apurer/course-marketplace-api/internal/platform/observability"
	"github.com/Apurer/course-marketplace-api/internal/platform/ordercode"
	"github.com/Apurer/course-marketplace-api/internal/platform/signature"
)

const serviceName = "course-marketplace-api"

// Deps are the process-level resources the API is assembled from. Nil fields fall back to
// in-memory, log-only or inline implementations.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Gateway  paymentsports.Gateway
	Notifier entports.Notifier
	Temporal client.Client
	// Watcher overrides the Temporal/inline choice.
	Watcher     paymentsports.SettlementWatcher
	Codes       paymentsports.CodeGenerator
	Instruments *platformobservability.Instruments
	Clock       func() time.Time
}

// App is the assembled API: the router plus the services behind it.
type App struct {
	Router       *gin.Engine
	Users        userports.Service
	Catalog      catalogports.Service
	Entitlements entports.Service
	Payments     paymentsports.Service
	Logger       *slog.Logger

	waiters []func()
	drain   func()
}

// Wait blocks until background notifications and inline sweeps have finished.
func (a *App) Wait() {
	for _, wait := range a.waiters {
		wait()
	}
}

// Build wires every bounded context and mounts the HTTP routes.
func Build(ctx context.Context, cfg Config, deps Deps) (*App, error) {
	if deps.Gateway == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}
	instruments := deps.Instruments
	logger := effectiveLogger(instruments)
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	app := &App{Logger: logger}

	// catalog
	var catalogRepo catalogports.Repository = catalogmemory.NewRepository()
	if deps.DB != nil {
		catalogRepo = catalogpostgres.NewRepository(deps.DB)
	}
	catalog := catalogapp.NewService(catalogRepo)
	if deps.DB == nil || cfg.SeedCatalog {
		if err := SeedCatalog(ctx, catalog); err != nil {
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
	}
	app.Catalog = catalog

	// users
	tokens, err := auth.NewIssuer(cfg.JWTSecret, auth.WithTTL(cfg.TokenTTL), auth.WithClock(now))
	if err != nil {
		return nil, err
	}
	var (
		userRepo     userports.Repository   = usermemory.NewRepository()
		userSessions userports.SessionStore = usermemory.NewSessionStore()
	)
	if deps.DB != nil {
		userRepo = userpostgres.NewRepository(deps.DB)
		userSessions = userpostgres.NewSessionStore(deps.DB)
	}
	app.Users = userobs.New(
		userapp.NewService(userRepo, userSessions, tokens, userapp.WithClock(now)),
		userobs.WithLogger(logger),
		userobs.WithTracer(instruments.Tracer("internal.users.application")),
		userobs.WithMeter(instruments.Meter("internal.users.application")),
	)

	// entitlements
	var enrollments entports.Repository = entmemory.NewRepository()
	if deps.DB != nil {
		enrollments = entpostgres.NewRepository(deps.DB)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = entnotify.NewLogNotifier(logger)
	}
	coreEntitlements := entapp.NewService(
		enrollments,
		entcollab.NewCatalog(catalog),
		entapp.WithLogger(logger),
		entapp.WithNotifier(notifier),
		entapp.WithDirectory(entcollab.NewDirectory(app.Users)),
		entapp.WithClock(now),
	)
	app.waiters = append(app.waiters, coreEntitlements.Wait)
	// inline sweeps can run until their deadline; shutdown only waits for notifications
	app.drain = coreEntitlements.Wait
	app.Entitlements = entobs.New(
		coreEntitlements,
		entobs.WithLogger(logger),
		entobs.WithTracer(instruments.Tracer("internal.entitlements.application")),
		entobs.WithMeter(instruments.Meter("internal.entitlements.application")),
	)

	// payments
	var (
		orders paymentsports.OrderRepository = paymentsmemory.NewRepository()
		events paymentsports.EventLog        = paymentsmemory.NewEventLog()
	)
	if deps.DB != nil {
		orders = paymentspostgres.NewRepository(deps.DB)
		events = paymentspostgres.NewEventLog(deps.DB)
	}
	if deps.Redis != nil {
		orders = paymentscache.NewRepository(orders, deps.Redis)
	}
	codes := deps.Codes
	if codes == nil {
		generator, err := ordercode.New(cfg.OrderCodeNode)
		if err != nil {
			return nil, err
		}
		codes = generator
	}
	reconciler := paymentsapp.NewReconciler(
		orders,
		deps.Gateway,
		signature.New(cfg.Gateway.ChecksumKey),
		paymentscollab.NewGranter(app.Entitlements),
		paymentsapp.WithEventLog(events),
		paymentsapp.WithClock(now),
	)
	watcher := deps.Watcher
	switch {
	case watcher != nil:
	case deps.Temporal != nil:
		watcher = paymentsworkflows.NewTemporalSettlementWatcher(deps.Temporal, cfg.SettlementGrace)
		logger.Info("settlement watcher runs on Temporal", slog.String("namespace", cfg.TemporalNamespace))
	default:
		inline := paymentsworkflows.NewInlineSettlementWatcher(reconciler, cfg.SettlementGrace, paymentsworkflows.WithLogger(logger))
		app.waiters = append(app.waiters, inline.Wait)
		watcher = inline
		logger.Warn("Temporal unavailable, settlement watcher runs inline and is not durable")
	}
	app.Payments = paymentsobs.New(
		paymentsapp.NewService(
			reconciler,
			paymentsapp.NewRegistry(orders, codes, cfg.OrderTTL),
			paymentscollab.NewPricing(catalog),
			watcher,
		),
		paymentsobs.WithLogger(logger),
		paymentsobs.WithTracer(instruments.Tracer("internal.payments.application")),
		paymentsobs.WithMeter(instruments.Meter("internal.payments.application")),
	)

	handlers := marketplaceserver.ApiHandleFunctions{
		AuthAPI:     marketplaceserver.NewAuthAPI(app.Users),
		PaymentsAPI: marketplaceserver.NewPaymentsAPI(app.Payments),
		AccessAPI:   marketplaceserver.NewAccessAPI(app.Entitlements),
		CatalogAPI:  marketplaceserver.NewCatalogAPI(catalog),
		Users:       app.Users,
		AdminKey:    cfg.AdminKey,
		Ready:       readiness(deps.DB),
	}
	if instruments != nil {
		handlers.MetricsHandler = instruments.MetricsHandler
	}
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName))
	app.Router = marketplaceserver.NewRouterWithGinEngine(router, handlers)
	return app, nil
}

func readiness(db *gorm.DB) func() error {
	if db == nil {
		return nil
	}
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return sqlDB.PingContext(ctx)
	}
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
