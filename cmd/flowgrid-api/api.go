// Package main provides the Flowgrid API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowgrid/flowgrid/pkg/collaborator"
	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/expression"
	"github.com/flowgrid/flowgrid/pkg/orchestrator"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/registry"
	"github.com/flowgrid/flowgrid/pkg/services"
	"github.com/flowgrid/flowgrid/pkg/strategies"
	"github.com/flowgrid/flowgrid/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	agents      collaborator.AgentClient
	tools       collaborator.ToolExecutor
	registry    *registry.Registry
	tracer      trace.Tracer
	scheduler   *orchestrator.Scheduler
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	agents collaborator.AgentClient,
	tools collaborator.ToolExecutor,
	registry *registry.Registry,
	tracer trace.Tracer,
	maxConcurrent int64,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		agents:      agents,
		tools:       tools,
		registry:    registry,
		tracer:      tracer,
		scheduler:   orchestrator.NewScheduler(maxConcurrent, logger),
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence)
	executionService := services.NewExecution(a.persistence)
	templateService := services.NewTemplate(a.persistence, a.logger)

	tracker := orchestrator.NewTracker(a.persistence.ExecutionRepository(), a.eventBus, a.logger)
	dispatcher := orchestrator.NewDispatcher(tracker, a.scheduler, strategies.Deps{
		Agents:    a.agents,
		Tools:     a.tools,
		Evaluator: expression.New(a.logger),
		Logger:    a.logger,
	}, a.tracer, a.logger)

	handlers := web.NewAPIHandlers(workflowService, executionService, templateService, dispatcher, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowgrid API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}

// Shutdown drains the execution scheduler, waiting for in-flight
// executions to finish.
func (a *API) Shutdown() {
	a.scheduler.Shutdown()
}
