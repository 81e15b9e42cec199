// Package main provides the entry point for the NewsWatch server
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rosalind-labs/newswatch/internal/api"
	"github.com/rosalind-labs/newswatch/internal/compliance"
	"github.com/rosalind-labs/newswatch/internal/engine"
	"github.com/rosalind-labs/newswatch/internal/platform"
	"github.com/rosalind-labs/newswatch/internal/politeness"
	"github.com/rosalind-labs/newswatch/internal/revalidation"
	"github.com/rosalind-labs/newswatch/internal/scrape"
	"github.com/rosalind-labs/newswatch/internal/store"
	"github.com/rosalind-labs/newswatch/internal/temporal/activities"
	"github.com/rosalind-labs/newswatch/internal/temporal/workflows"
	"github.com/rosalind-labs/newswatch/pkg/config"
	"github.com/rosalind-labs/newswatch/pkg/logging"
	"github.com/rs/zerolog/log"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	cfg, err := config.Load(getEnv("NEWSWATCH_CONFIG", "newswatch.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := logging.SetupLogger(cfg.Logging); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence: Postgres when a DSN is configured, in-memory otherwise.
	var st store.Store
	if cfg.Store.PostgresDSN != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		defer pg.Close()
		st = pg
		log.Info().Msg("Using Postgres store")
	} else {
		st = store.NewMemoryStore()
		log.Info().Msg("Using in-memory store")
	}

	// Compliance and extraction components.
	robots := compliance.NewRobotsChecker(cfg.RobotsConfig())
	validator := compliance.NewValidator(robots, st, cfg.ValidatorConfig())
	generator := platform.NewGenerator(platform.NewDetector())
	fetcher := scrape.NewFetcher(cfg.FetcherConfig())
	scheduler := politeness.NewScheduler()

	eng := engine.NewEngine(
		st,
		validator,
		generator,
		fetcher,
		scheduler,
		nil, // annotator wired by downstream deployments
		cfg.RetryPolicy(),
		cfg.ExecutorConfig(),
		cfg.PoolConfig(),
		cfg.EngineConfig(),
	)
	eng.Start(ctx)
	defer eng.Stop()

	reval := revalidation.NewScheduler(st, validator, cfg.RevalidationSchedulerConfig(), eng.OnDisable)
	if err := reval.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start revalidation scheduler")
	}
	defer reval.Stop()

	// Optional durable pipeline.
	if cfg.Temporal.Enabled {
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Temporal client")
		}
		defer temporalClient.Close()

		w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{
			MaxConcurrentActivityExecutionSize: 10,
		})
		w.RegisterWorkflow(workflows.SourceOnboardingWorkflow)
		w.RegisterWorkflow(workflows.RevalidationSweepWorkflow)

		acts := activities.NewActivities(eng, st, reval)
		w.RegisterActivity(acts.OnboardSourceActivity)
		w.RegisterActivity(acts.CrawlSourceActivity)
		w.RegisterActivity(acts.RevalidationSweepActivity)

		go func() {
			if err := w.Run(worker.InterruptCh()); err != nil {
				log.Fatal().Err(err).Msg("Temporal worker stopped")
			}
		}()
		log.Info().Str("task_queue", cfg.Temporal.TaskQueue).Msg("Temporal worker started")
	}

	app := fiber.New(fiber.Config{
		AppName:               "NewsWatch API",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "UTC",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	h := api.NewHandlers(eng, st, reval)
	h.RegisterRoutes(app)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "NewsWatch",
			"version": "0.1.0",
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server")
		cancel()
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("port", cfg.Server.Port).Msg("Starting NewsWatch server")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
