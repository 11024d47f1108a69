package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence("file://" + t.TempDir())
}

func sampleWorkflow(id, name string, status models.WorkflowStatus) *models.Workflow {
	now := time.Now().UTC()

	return &models.Workflow{
		ID:           id,
		Name:         name,
		WorkflowType: models.WorkflowTypeAgent,
		Status:       status,
		WorkflowDefinition: models.WorkflowDefinition{
			Nodes: []*models.WorkflowNode{
				{ID: "start", Type: models.NodeTypeTrigger},
				{ID: "agent-1", Type: models.NodeTypeAgent, Data: models.NodeData{AgentID: "researcher"}},
			},
			Connections: []*models.Connection{
				{ID: "c1", Source: "start", Target: "agent-1"},
			},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.WorkflowRepository()

	workflow := sampleWorkflow("workflow-demo-1", "Demo", models.WorkflowStatusDraft)

	require.NoError(t, repo.Save(ctx, workflow))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, workflow.Name, loaded.Name)
	assert.Len(t, loaded.Nodes, 2)
	assert.Len(t, loaded.Connections, 1)
}

func TestWorkflowRepository_GetByIDAbsent(t *testing.T) {
	p := newTestPersistence(t)

	loaded, err := p.WorkflowRepository().GetByID(context.Background(), "workflow-nope-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestWorkflowRepository_ListFilterAndPaging(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.WorkflowRepository()

	require.NoError(t, repo.Save(ctx, sampleWorkflow("workflow-a-1", "Alpha", models.WorkflowStatusActive)))
	require.NoError(t, repo.Save(ctx, sampleWorkflow("workflow-b-1", "Beta", models.WorkflowStatusDraft)))
	require.NoError(t, repo.Save(ctx, sampleWorkflow("workflow-c-1", "Gamma", models.WorkflowStatusActive)))

	active := models.WorkflowStatusActive

	result, err := repo.List(ctx, persistence.ListWorkflowsOptions{Status: &active, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.TotalCount)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "Alpha", result.Workflows[0].Name)
	assert.False(t, result.HasNextPage)

	paged, err := repo.List(ctx, persistence.ListWorkflowsOptions{Limit: 2, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, paged.TotalCount)
	assert.Len(t, paged.Workflows, 2)
	assert.True(t, paged.HasNextPage)
}

func TestWorkflowRepository_ListRejectsUnknownSortField(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.WorkflowRepository().List(context.Background(), persistence.ListWorkflowsOptions{SortBy: "definition"})
	assert.ErrorIs(t, err, persistence.ErrInvalidSortField)
}

func TestWorkflowRepository_Delete(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.WorkflowRepository()

	workflow := sampleWorkflow("workflow-gone-1", "Gone", models.WorkflowStatusDraft)
	require.NoError(t, repo.Save(ctx, workflow))
	require.NoError(t, repo.Delete(ctx, workflow.ID))

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// deleting something already absent is not an error
	assert.NoError(t, repo.Delete(ctx, workflow.ID))
}

func TestExecutionRepository_RoundTripAndFilters(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.ExecutionRepository()

	first := &models.WorkflowExecution{
		ID:         "exec-1-aaaa",
		WorkflowID: "workflow-demo-1",
		Status:     models.ExecutionStatusCompleted,
		CreatedAt:  time.Now().UTC().Add(-time.Minute),
	}
	second := &models.WorkflowExecution{
		ID:         "exec-2-bbbb",
		WorkflowID: "workflow-demo-1",
		Status:     models.ExecutionStatusRunning,
		CreatedAt:  time.Now().UTC(),
	}
	other := &models.WorkflowExecution{
		ID:         "exec-3-cccc",
		WorkflowID: "workflow-other-1",
		Status:     models.ExecutionStatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, other))

	executions, err := repo.List(ctx, persistence.ListExecutionsOptions{WorkflowID: "workflow-demo-1"})
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, "exec-2-bbbb", executions[0].ID, "newest first")

	completed := models.ExecutionStatusCompleted

	executions, err = repo.List(ctx, persistence.ListExecutionsOptions{Status: &completed})
	require.NoError(t, err)
	assert.Len(t, executions, 2)
}

func TestTemplateRepository_IncrementUsage(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.TemplateRepository()

	template := &models.WorkflowTemplate{
		ID:                "template-research-1",
		Name:              "Research",
		Category:          "analysis",
		OrchestrationType: models.WorkflowTypeAgent,
		Definition: models.WorkflowDefinition{
			Nodes: []*models.WorkflowNode{{ID: "start", Type: models.NodeTypeTrigger}},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	require.NoError(t, repo.Save(ctx, template))
	require.NoError(t, repo.IncrementUsage(ctx, template.ID))
	require.NoError(t, repo.IncrementUsage(ctx, template.ID))

	loaded, err := repo.GetByID(ctx, template.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(2), loaded.UsageCount)

	assert.ErrorIs(t, repo.IncrementUsage(ctx, "template-missing-1"), persistence.ErrTemplateNotFound)
}

func TestPersistence_RejectsPathTraversalIDs(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	_, err := p.WorkflowRepository().GetByID(ctx, "../escape")
	assert.Error(t, err)

	_, err = p.ExecutionRepository().GetByID(ctx, "a/b")
	assert.Error(t, err)
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := newTestPersistence(t)

	assert.NoError(t, p.HealthCheck(context.Background()))
}
