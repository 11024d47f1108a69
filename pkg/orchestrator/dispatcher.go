package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/otelhelper"
	"github.com/flowgrid/flowgrid/pkg/strategies"
)

// Dispatcher accepts execution requests and runs them asynchronously.
// ExecuteWorkflow returns as soon as the execution record exists; the walk
// itself happens on a scheduler slot.
type Dispatcher struct {
	tracker   *Tracker
	scheduler *Scheduler
	deps      strategies.Deps
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewDispatcher wires a dispatcher. A nil tracer disables tracing.
func NewDispatcher(tracker *Tracker, scheduler *Scheduler, deps strategies.Deps, tracer trace.Tracer, logger *slog.Logger) *Dispatcher {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("orchestrator")
	}

	return &Dispatcher{
		tracker:   tracker,
		scheduler: scheduler,
		deps:      deps,
		tracer:    tracer,
		logger:    logger.With("module", "dispatcher"),
	}
}

// ExecuteWorkflow creates a pending execution and hands the run to the
// scheduler. The returned execution is still pending; callers poll or
// subscribe for its outcome. When the scheduler is full the execution is
// cancelled immediately rather than queued.
func (d *Dispatcher) ExecuteWorkflow(ctx context.Context, workflow *models.Workflow, input map[string]any, sessionID, userID string) (*models.WorkflowExecution, error) {
	err := workflow.WorkflowDefinition.Validate()
	if err != nil {
		return nil, err
	}

	execution, err := d.tracker.Create(ctx, workflow.ID, input, sessionID, userID)
	if err != nil {
		return nil, err
	}

	// the run must outlive the request that started it
	base := context.WithoutCancel(ctx)

	err = d.scheduler.Submit(base, execution.ID, func(runCtx context.Context) {
		d.run(runCtx, workflow, execution.ID)
	})
	if err != nil {
		cancelErr := d.tracker.Cancel(ctx, execution.ID, err.Error())
		if cancelErr != nil {
			d.logger.ErrorContext(ctx, "failed to cancel rejected execution",
				"execution_id", execution.ID, "error", cancelErr)
		}

		return nil, fmt.Errorf("failed to schedule execution %s: %w", execution.ID, err)
	}

	return execution, nil
}

// CancelExecution aborts an execution. In-flight runs are cancelled through
// their stored context handle and record their own terminal state; pending
// ones are cancelled directly.
func (d *Dispatcher) CancelExecution(ctx context.Context, executionID string) error {
	if d.scheduler.Cancel(executionID) {
		return nil
	}

	return d.tracker.Cancel(ctx, executionID, "cancelled by request")
}

func (d *Dispatcher) run(ctx context.Context, workflow *models.Workflow, executionID string) {
	mode := workflow.Mode()
	strategyType := workflow.Strategy()

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.StrategyKey, string(strategyType)),
		attribute.String(otelhelper.ModeKey, string(mode)),
	)
	defer span.End()

	// terminal states must be recorded even after cancellation
	finishCtx := context.WithoutCancel(ctx)

	execution, err := d.tracker.Begin(finishCtx, executionID, strategyType, mode)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to begin execution",
			"execution_id", executionID, "error", err)
		otelhelper.SetError(span, err)

		return
	}

	stopWatchdog := d.watchTimeout(ctx, workflow, executionID)
	defer stopWatchdog()

	var output any

	if mode == models.OrchestrationModeAuto {
		output, err = d.runAuto(ctx, workflow, execution.InputData, execution.SessionID)
	} else {
		output, err = d.runManual(ctx, workflow, strategyType, execution.InputData, execution.SessionID)
	}

	switch {
	case err == nil:
		err = d.tracker.Complete(finishCtx, executionID, output)
	case errors.Is(err, context.Canceled):
		err = d.tracker.Cancel(finishCtx, executionID, "cancelled")
	default:
		otelhelper.SetError(span, err)
		err = d.tracker.Fail(finishCtx, executionID, err)
	}

	if err != nil {
		d.logger.ErrorContext(finishCtx, "failed to record execution outcome",
			"execution_id", executionID, "error", err)
	}
}

// runManual executes the workflow's configured strategy.
func (d *Dispatcher) runManual(ctx context.Context, workflow *models.Workflow, strategyType models.StrategyType, input map[string]any, sessionID string) (any, error) {
	strategy, err := strategies.ForType(strategyType, d.deps)
	if err != nil {
		return nil, err
	}

	return strategy.Execute(ctx, &strategies.Input{
		Nodes:       workflow.Nodes,
		Connections: workflow.Connections,
		Context:     input,
		SessionID:   sessionID,
	})
}

// runAuto hands the whole graph to the agent service and lets it plan the
// run itself.
func (d *Dispatcher) runAuto(ctx context.Context, workflow *models.Workflow, input map[string]any, sessionID string) (any, error) {
	graph, err := json.Marshal(map[string]any{
		"workflow_id": workflow.ID,
		"name":        workflow.Name,
		"nodes":       workflow.Nodes,
		"connections": workflow.Connections,
		"input":       input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workflow graph: %w", err)
	}

	message := "Coordinate the following workflow and return the combined result.\n\n" + string(graph)

	return d.deps.Agents.Chat(ctx, message, sessionID)
}

// watchTimeout logs when an execution overruns its configured timeout. The
// timeout is advisory: the run keeps going and the log line is the signal.
func (d *Dispatcher) watchTimeout(ctx context.Context, workflow *models.Workflow, executionID string) func() {
	if workflow.Settings == nil || workflow.Settings.Timeout <= 0 {
		return func() {}
	}

	timeout := workflow.Settings.Timeout

	timer := time.AfterFunc(timeout, func() {
		d.logger.WarnContext(ctx, "execution exceeded its advisory timeout",
			"execution_id", executionID, "workflow_id", workflow.ID, "timeout", timeout)
	})

	return func() { timer.Stop() }
}
