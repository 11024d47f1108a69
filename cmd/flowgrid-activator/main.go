// Package main provides the Flowgrid schedule activator service: it scans
// active workflows for cron triggers and dispatches executions on schedule.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/flowgrid/flowgrid/pkg/cmd"
	"github.com/flowgrid/flowgrid/pkg/collaborator"
	"github.com/flowgrid/flowgrid/pkg/expression"
	"github.com/flowgrid/flowgrid/pkg/log"
	"github.com/flowgrid/flowgrid/pkg/orchestrator"
	"github.com/flowgrid/flowgrid/pkg/otelhelper"
	"github.com/flowgrid/flowgrid/pkg/schedule"
	"github.com/flowgrid/flowgrid/pkg/strategies"
)

const defaultMaxConcurrent = 10

func main() {
	cmdActivator := &cli.Command{
		Name:                  "flowgrid-activator",
		Usage:                 "Start the Flowgrid schedule activator service",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "activator-id",
				Aliases: []string{"id"},
				Usage:   "Custom activator ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ACTIVATOR_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Optional Redis URL for the execution store",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:     "agent-service-url",
				Usage:    "Base URL of the agent chat service",
				Required: true,
				Sources:  cli.EnvVars("AGENT_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "tool-service-url",
				Usage:   "Base URL of the tool execution service",
				Sources: cli.EnvVars("TOOL_SERVICE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel; empty disables)",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent",
				Usage:   "Maximum number of concurrently running executions",
				Value:   defaultMaxConcurrent,
				Sources: cli.EnvVars("MAX_CONCURRENT_EXECUTIONS"),
			},
			&cli.DurationFlag{
				Name:    "refresh-interval",
				Usage:   "How often to re-scan workflows for schedule changes",
				Value:   time.Minute,
				Sources: cli.EnvVars("REFRESH_INTERVAL"),
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

			activatorID := command.String("activator-id")
			if activatorID == "" {
				activatorID = fmt.Sprintf("activator-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("activator").With("activator_id", activatorID)

			logger.InfoContext(ctx, "Initializing Flowgrid Activator")

			tracerProvider, err := otelhelper.InitTracer(ctx, "flowgrid-activator")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger,
				command.String("database-url"), command.String("redis-url"))
			if err != nil {
				return fmt.Errorf("failed to initialize persistence: %w", err)
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "flowgrid-activator", logger)
			if err != nil {
				return fmt.Errorf("failed to initialize event bus: %w", err)
			}

			defer func() {
				if eventBus == nil {
					return
				}

				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var tools collaborator.ToolExecutor
			if url := command.String("tool-service-url"); url != "" {
				tools = collaborator.NewHTTPToolExecutor(logger, url)
			}

			tracker := orchestrator.NewTracker(persistence.ExecutionRepository(), eventBus, logger)
			scheduler := orchestrator.NewScheduler(int64(command.Int("max-concurrent")), logger)

			defer scheduler.Shutdown()

			dispatcher := orchestrator.NewDispatcher(tracker, scheduler, strategies.Deps{
				Agents:    cmd.NewAgentClient(logger, command.String("agent-service-url")),
				Tools:     tools,
				Evaluator: expression.New(logger),
				Logger:    logger,
			}, tracerProvider.Tracer("flowgrid-activator"), logger)

			activator := schedule.NewActivator(persistence, dispatcher, logger)

			err = activator.Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start activator: %w", err)
			}

			defer activator.Stop()

			run(ctx, logger, activator, command.Duration("refresh-interval"))

			return nil
		},
	}

	err := cmdActivator.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

// run re-scans for schedule changes on the refresh interval until a
// shutdown signal arrives.
func run(ctx context.Context, logger *slog.Logger, activator *schedule.Activator, refreshInterval time.Duration) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := activator.Refresh(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to refresh schedules", "error", err)
			}
		case sig := <-signals:
			logger.InfoContext(ctx, "Received signal, shutting down gracefully", "signal", sig.String())

			return
		case <-ctx.Done():
			return
		}
	}
}
