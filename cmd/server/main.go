package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/enforcement"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/jobqueue"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/policydoc"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if strings.HasPrefix(strings.ToLower(cfg.DBDriver), "postgres") && cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	policy, err := policydoc.Load(cfg.PolicyPath)
	if err != nil {
		slog.Error("failed to load policy document", "path", cfg.PolicyPath, "error", err)
		os.Exit(1)
	}
	slog.Info("policy document loaded", "version", policy.Version)

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ and job WARN records, async batch)
	pgLogHandler := logging.NewPGHandler(database.DB, slog.LevelWarn)
	slog.SetDefault(slog.New(logging.NewMultiHandler(slog.Default().Handler()).
		Route(pgLogHandler, logging.PersistFilter)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	m := metrics.New()

	queue, closeQueue, err := newQueue(cfg, m)
	if err != nil {
		slog.Error("job queue setup failed", "driver", cfg.QueueDriver, "error", err)
		os.Exit(1)
	}

	// Services
	notificationService := services.NewNotificationService(database.DB, cfg.SlackWebhookURL, m)
	blockService := services.NewBlockService(database.DB, queue, m)
	policyService := services.NewPolicyService(database.DB, blockService, notificationService, queue, policy, services.PolicyConfig{
		AutoBlockEnabled:      cfg.AutoBlockEnabled,
		AutoBlockDurationDays: cfg.AutoBlockDurationDays,
		AlertHighSeverity:     cfg.AlertHighSeverity,
	})
	flagService := services.NewFlagService(database.DB, blockService, policyService, notificationService, m)
	jobService := services.NewJobService(database.DB)

	// Background enforcement
	worker := enforcement.NewWorker(database.DB, queue, policyService)
	worker.Register(queue)
	scheduler := enforcement.NewScheduler(blockService, worker, queue, cfg.ExpirySweepInterval, cfg.RepairSweepInterval)

	// Handlers
	healthHandler := handlers.NewHealthHandler(queue)
	flagHandler := handlers.NewFlagHandler(flagService)
	blockerHandler := handlers.NewUserBlockerHandler(blockService)
	policyHandler := handlers.NewPolicyMisconductHandler(policyService)
	careerHandler := handlers.NewCareerMisconductHandler(policyService)
	jobHandler := handlers.NewJobHandler(jobService)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, database.DB, m, blockService,
		healthHandler, flagHandler, blockerHandler, policyHandler, careerHandler, jobHandler)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")
		return app.ShutdownWithTimeout(10 * time.Second)
	})
	g.Go(func() error {
		queue.Start(gctx)
		<-gctx.Done()
		queue.Stop()
		return nil
	})
	g.Go(func() error {
		scheduler.Start(gctx)
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "error", err)
	}

	close(cleanupDone)
	closeQueue()
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

// newQueue builds the job queue selected by QUEUE_DRIVER. Dead-lettered jobs are
// reported to Sentry.
func newQueue(cfg *config.Config, m *metrics.Metrics) (jobqueue.Queue, func(), error) {
	opts := jobqueue.Options{
		Workers:     cfg.QueueWorkers,
		MaxAttempts: cfg.JobMaxAttempts,
		Metrics:     m,
		OnDeadLetter: func(job *jobqueue.Job, err error) {
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("job_type", string(job.Type))
				scope.SetExtra("job_id", job.ID)
				scope.SetExtra("attempts", job.Attempts)
				sentry.CaptureException(fmt.Errorf("job %s dead-lettered: %w", job.Type, err))
			})
		},
	}

	switch strings.ToLower(cfg.QueueDriver) {
	case "memory":
		return jobqueue.NewMemoryQueue(0, opts), func() {}, nil
	case "redis":
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(redisOpts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}

		closeFn := func() {
			if err := client.Close(); err != nil {
				slog.Error("redis close error", "error", err)
			}
		}
		return jobqueue.NewRedisQueue(client, opts), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unsupported queue driver: %s", cfg.QueueDriver)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Success: false,
		Error:   utils.StatusMessage(code),
		Message: message,
	})
}
