// Package schedule runs cron-scheduled workflows. A workflow participates
// by putting a standard cron expression in its trigger node's
// config["cron"]; the activator dispatches an execution on every tick.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/orchestrator"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// Activator scans active workflows for cron triggers and dispatches them.
type Activator struct {
	persistence persistence.Persistence
	dispatcher  *orchestrator.Dispatcher
	logger      *slog.Logger

	cron  *cron.Cron
	mutex sync.Mutex
	jobs  map[string]cron.EntryID // workflow id -> cron entry
}

// NewActivator creates an activator.
func NewActivator(persistence persistence.Persistence, dispatcher *orchestrator.Dispatcher, logger *slog.Logger) *Activator {
	return &Activator{
		persistence: persistence,
		dispatcher:  dispatcher,
		logger:      logger.With("module", "activator"),
		jobs:        make(map[string]cron.EntryID),
	}
}

// Start loads the schedules and begins ticking. Call Refresh to pick up
// workflow changes afterwards.
func (a *Activator) Start(ctx context.Context) error {
	a.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	err := a.Refresh(ctx)
	if err != nil {
		return err
	}

	a.cron.Start()
	a.logger.InfoContext(ctx, "schedule activator started", "jobs", len(a.jobs))

	return nil
}

// Refresh re-syncs the cron entries with the active workflows: new
// schedules are added, removed or deactivated ones are dropped.
func (a *Activator) Refresh(ctx context.Context) error {
	active := models.WorkflowStatusActive

	result, err := a.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Status: &active,
		Limit:  100,
	})
	if err != nil {
		return fmt.Errorf("failed to list active workflows: %w", err)
	}

	seen := make(map[string]bool)

	for _, workflow := range result.Workflows {
		expr := cronExpression(workflow)
		if expr == "" {
			continue
		}

		seen[workflow.ID] = true

		err := a.schedule(ctx, workflow, expr)
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to schedule workflow",
				"workflow_id", workflow.ID, "error", err)
		}
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	for workflowID, entryID := range a.jobs {
		if !seen[workflowID] {
			a.cron.Remove(entryID)
			delete(a.jobs, workflowID)
		}
	}

	return nil
}

// Stop halts the ticker and waits for running jobs.
func (a *Activator) Stop() {
	if a.cron == nil {
		return
	}

	<-a.cron.Stop().Done()
}

func (a *Activator) schedule(ctx context.Context, workflow *models.Workflow, expr string) error {
	_, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if _, exists := a.jobs[workflow.ID]; exists {
		return nil
	}

	workflowID := workflow.ID

	entryID, err := a.cron.AddFunc(expr, func() {
		a.activate(ctx, workflowID)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	a.jobs[workflowID] = entryID
	a.logger.InfoContext(ctx, "workflow scheduled", "workflow_id", workflowID, "cron", expr)

	return nil
}

// activate reloads the workflow on each tick so edits between ticks take
// effect without a refresh.
func (a *Activator) activate(ctx context.Context, workflowID string) {
	workflow, err := a.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil || workflow == nil {
		a.logger.ErrorContext(ctx, "scheduled workflow unavailable",
			"workflow_id", workflowID, "error", err)

		return
	}

	if workflow.Status != models.WorkflowStatusActive {
		return
	}

	execution, err := a.dispatcher.ExecuteWorkflow(ctx, workflow,
		map[string]any{"triggered_by": "schedule"}, "", "")
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to dispatch scheduled execution",
			"workflow_id", workflowID, "error", err)

		return
	}

	a.logger.InfoContext(ctx, "scheduled execution dispatched",
		"workflow_id", workflowID, "execution_id", execution.ID)
}

// cronExpression extracts the trigger node's cron expression, if any.
func cronExpression(workflow *models.Workflow) string {
	trigger := workflow.TriggerNode()
	if trigger == nil {
		return ""
	}

	if expr, ok := trigger.Data.Config["cron"].(string); ok {
		return expr
	}

	return ""
}
