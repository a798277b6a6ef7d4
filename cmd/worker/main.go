package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gymdesk/gymdesk/internal/app"
	jobmetrics "github.com/gymdesk/gymdesk/internal/jobs"
	"github.com/gymdesk/gymdesk/internal/payments"
	"github.com/gymdesk/gymdesk/internal/platform/cache"
	"github.com/gymdesk/gymdesk/internal/platform/db"
	"github.com/gymdesk/gymdesk/internal/reporting"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/students"
	"github.com/gymdesk/gymdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "gymdesk-worker")

	pool, err := db.New(ctx, cfg.PGDSN, 4)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	clock := shared.SystemClock(cfg.Location())
	metrics := jobmetrics.NewMetrics(nil)
	auditLogger := shared.NewAuditLogger(pool)

	// Bumps from the worker reach API processes through the cache's pub/sub channel.
	reportCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)

	studentService := students.NewService(students.NewRepository(pool), auditLogger, reportCache, clock, logger)
	paymentService := payments.NewService(payments.NewRepository(pool), auditLogger, reportCache, clock, logger)

	reconcileJob := jobs.NewReconcileJob(paymentService, logger, metrics)
	overdueJob := jobs.NewOverdueJob(studentService, logger, metrics)
	cleanupJob := &jobs.IdempotencyCleanupJob{
		Store:     shared.NewIdempotencyStore(pool, clock),
		Retention: cfg.IdempotencyRetention,
		Logger:    logger,
		Metrics:   metrics,
	}

	reconcileTask, err := jobs.NewReconcileTask(nil)
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:    logger,
		Location:  cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCycleReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskStudentsOverdue, Handler: overdueJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CronReconcile, Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.CronOverdue, Task: jobs.NewOverdueTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.CronIdempotencyCleanup, Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("timezone", cfg.Timezone))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
