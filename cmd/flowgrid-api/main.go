package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/flowgrid/flowgrid/pkg/cmd"
	"github.com/flowgrid/flowgrid/pkg/collaborator"
	"github.com/flowgrid/flowgrid/pkg/log"
	"github.com/flowgrid/flowgrid/pkg/otelhelper"
)

const (
	defaultPort          = 9090
	defaultMaxConcurrent = 10
)

func main() {
	logger := log.WithModule("api")

	cmdAPI := &cli.Command{
		Name:                  "flowgrid-api",
		Usage:                 "Create, manage, and execute agent workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Name:    "mcp-servers",
				Usage:   "Comma-separated MCP catalog URLs (id=url pairs)",
				Sources: cli.EnvVars("MCP_SERVERS"),
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
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Flowgrid API")

			tracerProvider, err := otelhelper.InitTracer(ctx, "flowgrid-api")
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

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "flowgrid-api", logger)
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

			agents := cmd.NewAgentClient(logger, command.String("agent-service-url"))

			var tools collaborator.ToolExecutor
			if url := command.String("tool-service-url"); url != "" {
				tools = collaborator.NewHTTPToolExecutor(logger, url)
			}

			registry := cmd.NewToolRegistry(ctx, logger, command.String("mcp-servers"))

			api := NewAPI(
				logger,
				persistence,
				eventBus,
				agents,
				tools,
				registry,
				tracerProvider.Tracer("flowgrid-api"),
				int64(command.Int("max-concurrent")),
			)
			defer api.Shutdown()

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := cmdAPI.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
