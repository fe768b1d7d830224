package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/course-marketplace-api/internal/app/api"
	platformobservability "github.com/Apurer/course-marketplace-api/internal/platform/observability"
	paymentactivities "github.com/Apurer/course-marketplace-api/internal/platform/temporal/activities/payments"
	settlementworkflows "github.com/Apurer/course-marketplace-api/internal/platform/temporal/workflows/payments"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()
	const serviceName = "course-marketplace-worker"
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

	cfg, err := api.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	temporalClient, err := api.ConnectTemporal(cfg, instruments)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	app, cleanup, err := api.Open(ctx, cfg, instruments, temporalClient)
	if err != nil {
		logger.Error("failed to assemble payments services", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()
	sweepActivities := paymentactivities.NewActivities(app.Payments)

	w := worker.New(temporalClient, settlementworkflows.SettlementTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(settlementworkflows.SettlementWorkflow, workflow.RegisterOptions{Name: settlementworkflows.SettlementWorkflowName})
	w.RegisterActivityWithOptions(sweepActivities.SweepOrder, activity.RegisterOptions{Name: paymentactivities.SweepOrderActivityName})

	logger.Info("worker listening", slog.String("taskQueue", settlementworkflows.SettlementTaskQueue), slog.String("namespace", cfg.TemporalNamespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
