package schedule

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/expression"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/orchestrator"
	"github.com/flowgrid/flowgrid/pkg/persistence/file"
	"github.com/flowgrid/flowgrid/pkg/strategies"
)

type silentAgent struct{}

func (silentAgent) Chat(context.Context, string, string) (string, error) { return "ok", nil }

func (silentAgent) ChatWithAgent(context.Context, string, string, string) (string, error) {
	return "ok", nil
}

func scheduledWorkflow(id string, status models.WorkflowStatus, cronExpr string) *models.Workflow {
	trigger := &models.WorkflowNode{ID: "start", Type: models.NodeTypeTrigger}
	if cronExpr != "" {
		trigger.Data.Config = map[string]any{"cron": cronExpr}
	}

	now := time.Now().UTC()

	return &models.Workflow{
		ID:     id,
		Name:   "Scheduled " + id,
		Status: status,
		WorkflowDefinition: models.WorkflowDefinition{
			Nodes: []*models.WorkflowNode{
				trigger,
				{ID: "n1", Type: models.NodeTypeAgent, Data: models.NodeData{AgentID: "worker"}},
			},
			Connections: []*models.Connection{
				{ID: "c1", Source: "start", Target: "n1"},
			},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestActivator(t *testing.T) (*Activator, *file.Persistence) {
	t.Helper()

	logger := slog.Default()
	p := file.NewPersistence(t.TempDir())

	tracker := orchestrator.NewTracker(p.ExecutionRepository(), nil, logger)
	scheduler := orchestrator.NewScheduler(4, logger)
	t.Cleanup(scheduler.Shutdown)

	dispatcher := orchestrator.NewDispatcher(tracker, scheduler, strategies.Deps{
		Agents:    silentAgent{},
		Evaluator: expression.New(logger),
		Logger:    logger,
	}, nil, logger)

	return NewActivator(p, dispatcher, logger), p
}

func TestActivator_SchedulesOnlyActiveCronWorkflows(t *testing.T) {
	activator, p := newTestActivator(t)
	ctx := context.Background()

	require.NoError(t, p.WorkflowRepository().Save(ctx,
		scheduledWorkflow("workflow-active-1", models.WorkflowStatusActive, "@hourly")))
	require.NoError(t, p.WorkflowRepository().Save(ctx,
		scheduledWorkflow("workflow-draft-1", models.WorkflowStatusDraft, "@hourly")))
	require.NoError(t, p.WorkflowRepository().Save(ctx,
		scheduledWorkflow("workflow-nocron-1", models.WorkflowStatusActive, "")))

	require.NoError(t, activator.Start(ctx))
	defer activator.Stop()

	activator.mutex.Lock()
	defer activator.mutex.Unlock()

	assert.Len(t, activator.jobs, 1)
	assert.Contains(t, activator.jobs, "workflow-active-1")
}

func TestActivator_RefreshDropsRemovedSchedules(t *testing.T) {
	activator, p := newTestActivator(t)
	ctx := context.Background()

	require.NoError(t, p.WorkflowRepository().Save(ctx,
		scheduledWorkflow("workflow-gone-1", models.WorkflowStatusActive, "@daily")))

	require.NoError(t, activator.Start(ctx))
	defer activator.Stop()

	require.NoError(t, p.WorkflowRepository().Delete(ctx, "workflow-gone-1"))
	require.NoError(t, activator.Refresh(ctx))

	activator.mutex.Lock()
	defer activator.mutex.Unlock()

	assert.Empty(t, activator.jobs)
}

func TestActivator_RejectsBadCronExpression(t *testing.T) {
	activator, p := newTestActivator(t)
	ctx := context.Background()

	require.NoError(t, p.WorkflowRepository().Save(ctx,
		scheduledWorkflow("workflow-bad-1", models.WorkflowStatusActive, "not a cron")))

	// Refresh logs and skips the broken schedule instead of failing
	require.NoError(t, activator.Start(ctx))
	defer activator.Stop()

	activator.mutex.Lock()
	defer activator.mutex.Unlock()

	assert.Empty(t, activator.jobs)
}
