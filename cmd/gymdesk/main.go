package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gymdesk/gymdesk/cmd/gymdesk/cli"
	"github.com/gymdesk/gymdesk/internal/app"
	"github.com/gymdesk/gymdesk/internal/audit"
	"github.com/gymdesk/gymdesk/internal/auth"
	"github.com/gymdesk/gymdesk/internal/observability"
	"github.com/gymdesk/gymdesk/internal/payments"
	"github.com/gymdesk/gymdesk/internal/platform/cache"
	"github.com/gymdesk/gymdesk/internal/platform/db"
	"github.com/gymdesk/gymdesk/internal/products"
	"github.com/gymdesk/gymdesk/internal/rbac"
	"github.com/gymdesk/gymdesk/internal/reporting"
	"github.com/gymdesk/gymdesk/internal/sales"
	"github.com/gymdesk/gymdesk/internal/shared"
	"github.com/gymdesk/gymdesk/internal/students"
	"github.com/gymdesk/gymdesk/internal/users"
	"github.com/gymdesk/gymdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "gymdesk-api")

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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
	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionSecret, cfg.SessionTTL, clock)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool, clock)

	rbacService := rbac.NewService()
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	reportCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	if err := reportCache.ListenForInvalidation(ctx, logger); err != nil {
		logger.Warn("report cache listener", slog.Any("error", err))
	}
	reportService := reporting.NewService(reporting.NewRepository(dbpool), reportCache, logger)
	reportHandler := reporting.NewHandler(logger, reportService, rbacMiddleware, cfg.Location())

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger, clock, logger)
	authService := auth.NewService(usersRepo, sessionManager, logger)

	studentService := students.NewService(students.NewRepository(dbpool), auditLogger, reportService, clock, logger)

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	paymentService := payments.NewService(payments.NewRepository(dbpool), auditLogger, reportService, clock, logger).
		WithMetrics(metrics)
	productService := products.NewService(products.NewRepository(dbpool), auditLogger, clock, logger).
		WithMetrics(metrics)
	saleService := sales.NewService(sales.NewRepository(dbpool), sales.ServiceDeps{
		Idempotency: idempotencyStore,
		Audit:       auditLogger,
		Reports:     reportService,
		Metrics:     metrics,
		Clock:       clock,
		Logger:      logger,
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		Authenticator:      authService.Middleware,
		AuthHandler:        auth.NewHandler(logger, authService),
		UsersHandler:       users.NewHandler(logger, usersService),
		StudentsHandler:    students.NewHandler(logger, studentService, rbacMiddleware),
		PaymentsHandler:    payments.NewHandler(logger, paymentService, rbacMiddleware).WithSummary(reportHandler.PaymentSummaryHandler()).WithEnqueuer(queueClient),
		ProductsHandler:    products.NewHandler(logger, productService, rbacMiddleware),
		SalesHandler:       sales.NewHandler(logger, saleService, rbacMiddleware).WithSummary(reportHandler.SaleSummaryHandler()),
		ReportingHandler:   reportHandler,
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService),
		AuditHandler:       audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware, cfg.Location()),
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("timezone", cfg.Timezone))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	c := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer c.Close()
	if len(args) == 0 {
		return errors.New("usage: gymdesk jobs stats | trigger <task> [student-id]")
	}
	switch args[0] {
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: gymdesk jobs trigger <task> [student-id]")
		}
		var arg string
		if len(args) > 2 {
			arg = args[2]
		}
		info, err := c.Trigger(ctx, args[1], arg)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s\n", info.Type, info.ID)
		return nil
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
}
