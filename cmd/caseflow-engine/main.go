package main

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"

	"github.com/caseflowhq/caseflow/pkg/cmd"
	"github.com/caseflowhq/caseflow/pkg/log"
	"github.com/caseflowhq/caseflow/pkg/services"
	"github.com/caseflowhq/caseflow/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "caseflow-engine",
		EnableShellCompletion: true,
		Usage:                 "Run the automation engine: consume case events and execute matching workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for hard rate limiting (ledger-based soft limiting when unset)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("caseflow-engine")

			logger.InfoContext(ctx, "Initializing Caseflow Engine")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "caseflow-engine", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			var limiter workflow.RateLimiter
			if redisURL := command.String("redis-url"); redisURL != "" {
				opts, err := redis.ParseURL(redisURL)
				if err != nil {
					logger.ErrorContext(ctx, "Invalid redis URL", "error", err)

					return err
				}

				limiter = workflow.NewRedisRateLimiter(redis.NewClient(opts))

				logger.InfoContext(ctx, "Rate limiting backed by redis")
			}

			integrations := services.NewIntegrations(eventBus)
			registry := cmd.NewRegistry(logger, persistence, integrations)
			engine := workflow.NewEngine(persistence, registry, integrations, limiter, logger)

			manager, err := NewEngineManager(ctx, engine, eventBus, logger)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to initialize engine manager", "error", err)

				return err
			}

			err = manager.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start engine manager", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
