// Package orchestrator dispatches workflow executions: it tracks their
// lifecycle, bounds their concurrency, and runs the configured
// orchestration strategy against the agent service.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/events"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// ErrInvalidTransition is returned when a status change violates the
// execution state machine.
var ErrInvalidTransition = fmt.Errorf("invalid execution status transition")

// Tracker owns the execution state machine. Every transition is persisted
// before its event is published; a lost event never hides a state change.
type Tracker struct {
	executions persistence.ExecutionRepository
	bus        eventbus.EventPublisher
	logger     *slog.Logger
}

// NewTracker creates a tracker. The bus may be nil, which disables
// lifecycle event publishing.
func NewTracker(executions persistence.ExecutionRepository, bus eventbus.EventPublisher, logger *slog.Logger) *Tracker {
	return &Tracker{
		executions: executions,
		bus:        bus,
		logger:     logger.With("module", "tracker"),
	}
}

// Create registers a new pending execution.
func (t *Tracker) Create(ctx context.Context, workflowID string, input map[string]any, sessionID, userID string) (*models.WorkflowExecution, error) {
	execution := &models.WorkflowExecution{
		ID:         models.NewExecutionID(),
		WorkflowID: workflowID,
		Status:     models.ExecutionStatusPending,
		InputData:  input,
		SessionID:  sessionID,
		UserID:     userID,
		CreatedAt:  time.Now().UTC(),
	}

	err := t.executions.Save(ctx, execution)
	if err != nil {
		return nil, err
	}

	return execution, nil
}

// Begin moves the execution to running and publishes ExecutionStarted.
func (t *Tracker) Begin(ctx context.Context, id string, strategy models.StrategyType, mode models.OrchestrationMode) (*models.WorkflowExecution, error) {
	execution, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}

	err = t.transition(ctx, execution, models.ExecutionStatusRunning)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	execution.StartedAt = &now

	err = t.executions.Save(ctx, execution)
	if err != nil {
		return nil, err
	}

	t.publish(ctx, execution, events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, execution.WorkflowID, execution.ID),
		Strategy:  string(strategy),
		Mode:      string(mode),
		InputData: execution.InputData,
	})

	return execution, nil
}

// Complete finishes the execution successfully with its output.
func (t *Tracker) Complete(ctx context.Context, id string, output any) error {
	execution, err := t.load(ctx, id)
	if err != nil {
		return err
	}

	err = t.transition(ctx, execution, models.ExecutionStatusCompleted)
	if err != nil {
		return err
	}

	execution.OutputData = output
	t.stamp(execution)

	err = t.executions.Save(ctx, execution)
	if err != nil {
		return err
	}

	t.publish(ctx, execution, events.ExecutionCompleted{
		BaseEvent:  events.NewBaseEvent(events.ExecutionCompletedEvent, execution.WorkflowID, execution.ID),
		Result:     output,
		DurationMs: execution.DurationMs,
	})

	return nil
}

// Fail finishes the execution with an error message.
func (t *Tracker) Fail(ctx context.Context, id string, cause error) error {
	execution, err := t.load(ctx, id)
	if err != nil {
		return err
	}

	err = t.transition(ctx, execution, models.ExecutionStatusFailed)
	if err != nil {
		return err
	}

	execution.ErrorMessage = cause.Error()
	t.stamp(execution)

	err = t.executions.Save(ctx, execution)
	if err != nil {
		return err
	}

	t.publish(ctx, execution, events.ExecutionFailed{
		BaseEvent:  events.NewBaseEvent(events.ExecutionFailedEvent, execution.WorkflowID, execution.ID),
		Error:      execution.ErrorMessage,
		DurationMs: execution.DurationMs,
	})

	return nil
}

// Cancel moves a pending or running execution to cancelled.
func (t *Tracker) Cancel(ctx context.Context, id, reason string) error {
	execution, err := t.load(ctx, id)
	if err != nil {
		return err
	}

	err = t.transition(ctx, execution, models.ExecutionStatusCancelled)
	if err != nil {
		return err
	}

	execution.ErrorMessage = reason
	t.stamp(execution)

	err = t.executions.Save(ctx, execution)
	if err != nil {
		return err
	}

	t.publish(ctx, execution, events.ExecutionCancelled{
		BaseEvent:  events.NewBaseEvent(events.ExecutionCancelledEvent, execution.WorkflowID, execution.ID),
		Reason:     reason,
		DurationMs: execution.DurationMs,
	})

	return nil
}

func (t *Tracker) load(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	execution, err := t.executions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, persistence.ErrExecutionNotFound
	}

	return execution, nil
}

func (t *Tracker) transition(ctx context.Context, execution *models.WorkflowExecution, to models.ExecutionStatus) error {
	if !execution.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s for execution %s",
			ErrInvalidTransition, execution.Status, to, execution.ID)
	}

	t.logger.InfoContext(ctx, "execution status change",
		"execution_id", execution.ID, "from", execution.Status, "to", to)

	execution.Status = to

	return nil
}

// stamp records completion time and duration. Duration is measured from
// StartedAt; an execution cancelled before it started has no duration.
func (t *Tracker) stamp(execution *models.WorkflowExecution) {
	now := time.Now().UTC()
	execution.CompletedAt = &now

	if execution.StartedAt != nil {
		execution.DurationMs = now.Sub(*execution.StartedAt).Milliseconds()
	}
}

func (t *Tracker) publish(ctx context.Context, execution *models.WorkflowExecution, event eventbus.Event) {
	if t.bus == nil {
		return
	}

	err := t.bus.Publish(ctx, execution.WorkflowID, event)
	if err != nil {
		t.logger.ErrorContext(ctx, "failed to publish execution event",
			"execution_id", execution.ID, "event_type", event.GetType(), "error", err)
	}
}
