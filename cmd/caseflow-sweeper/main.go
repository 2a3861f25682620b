package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/caseflowhq/caseflow/pkg/cmd"
	"github.com/caseflowhq/caseflow/pkg/eventbus"
	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/log"
	"github.com/caseflowhq/caseflow/pkg/sweeper"
)

// busSink publishes sweep events to the event bus instead of handing them to
// an in-process engine, so the sweeper can run as its own deployment.
type busSink struct {
	publisher eventbus.EventPublisher
}

func (s *busSink) TriggerEvent(ctx context.Context, evt events.TriggerEvent) error {
	event, ok := evt.(eventbus.Event)
	if !ok {
		return nil
	}

	return s.publisher.Publish(ctx, evt.GetEntityID(), event)
}

func main() {
	command := &cli.Command{
		Name:                  "caseflow-sweeper",
		EnableShellCompletion: true,
		Usage:                 "Emit scheduled and inactivity sweep events for time-based workflow triggers",
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
			&cli.DurationFlag{
				Name:    "sweep-interval",
				Usage:   "How often to run a sweep pass",
				Value:   sweeper.DefaultInterval,
				Sources: cli.EnvVars("SWEEP_INTERVAL"),
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

			logger := log.WithModule("caseflow-sweeper")

			logger.InfoContext(ctx, "Initializing Caseflow Sweeper")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "caseflow-sweeper", logger)
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

			s := sweeper.NewSweeper(persistence, &busSink{publisher: eventBus}, logger).
				WithInterval(command.Duration("sweep-interval"))

			err := s.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start sweeper", "error", err)

				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down sweeper...")

			return s.Stop(context.Background())
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
