package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/expression"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/orchestrator"
	"github.com/flowgrid/flowgrid/pkg/persistence/file"
	"github.com/flowgrid/flowgrid/pkg/services"
	"github.com/flowgrid/flowgrid/pkg/strategies"
	"github.com/flowgrid/flowgrid/pkg/web"
)

type fixedAgent struct{ response string }

func (a *fixedAgent) Chat(_ context.Context, _, _ string) (string, error) {
	return a.response, nil
}

func (a *fixedAgent) ChatWithAgent(_ context.Context, _, _, _ string) (string, error) {
	return a.response, nil
}

func setupTestApp(t *testing.T) (*fiber.App, *services.Execution) {
	t.Helper()

	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	workflowService := services.NewWorkflow(persistence)
	executionService := services.NewExecution(persistence)
	templateService := services.NewTemplate(persistence, logger)

	tracker := orchestrator.NewTracker(persistence.ExecutionRepository(), nil, logger)
	scheduler := orchestrator.NewScheduler(4, logger)
	t.Cleanup(scheduler.Shutdown)

	deps := strategies.Deps{
		Agents:    &fixedAgent{response: "done"},
		Evaluator: expression.New(logger),
		Logger:    logger,
	}

	dispatcher := orchestrator.NewDispatcher(tracker, scheduler, deps, nil, logger)

	handlers := web.NewAPIHandlers(workflowService, executionService, templateService, dispatcher, nil)

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return app, executionService
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()

	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req
}

func createWorkflow(t *testing.T, app *fiber.App, name string) models.Workflow {
	t.Helper()

	req := jsonRequest(t, http.MethodPost, "/workflows", services.CreateWorkflowRequest{
		Name: name,
		Definition: models.WorkflowDefinition{
			Nodes: []*models.WorkflowNode{
				{ID: "start", Type: models.NodeTypeTrigger},
				{ID: "n1", Type: models.NodeTypeAgent, Data: models.NodeData{AgentID: "worker"}},
			},
			Connections: []*models.Connection{
				{ID: "c1", Source: "start", Target: "n1"},
			},
		},
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var workflow models.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workflow))

	return workflow
}

func TestCreateAndGetWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	workflow := createWorkflow(t, app, "API Test Workflow")
	assert.Equal(t, models.WorkflowStatusDraft, workflow.Status)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+workflow.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateWorkflow_ValidationError(t *testing.T) {
	app, _ := setupTestApp(t)

	req := jsonRequest(t, http.MethodPost, "/workflows", services.CreateWorkflowRequest{
		Name: "No Trigger Here",
		Definition: models.WorkflowDefinition{
			Nodes: []*models.WorkflowNode{
				{ID: "n1", Type: models.NodeTypeAgent, Data: models.NodeData{AgentID: "worker"}},
			},
		},
	})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWorkflow_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workflows/workflow-ghost-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateWorkflow_Partial(t *testing.T) {
	app, _ := setupTestApp(t)
	workflow := createWorkflow(t, app, "Patch Me Please")

	resp, err := app.Test(jsonRequest(t, http.MethodPatch, "/workflows/"+workflow.ID,
		map[string]any{"description": "updated"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.Workflow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "updated", updated.Description)
	assert.Equal(t, 2, updated.Version)
}

func TestDeleteWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)
	workflow := createWorkflow(t, app, "Delete Me Please")

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/"+workflow.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/"+workflow.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecuteWorkflow_Accepted(t *testing.T) {
	app, executions := setupTestApp(t)
	workflow := createWorkflow(t, app, "Run Me Please")

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/execute",
		web.ExecuteWorkflowRequest{Input: map[string]any{"topic": "go"}}))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var ack web.ExecuteWorkflowResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.NotEmpty(t, ack.ExecutionID)
	assert.Equal(t, "pending", ack.Status)

	// the run completes asynchronously
	require.Eventually(t, func() bool {
		execution, err := executions.FetchByID(context.Background(), ack.ExecutionID)

		return err == nil && execution.Status == models.ExecutionStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/executions/"+ack.ExecutionID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExecuteWorkflow_UnknownWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/workflows/workflow-ghost-1/execute", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListExecutions_FilterByWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)
	workflow := createWorkflow(t, app, "List My Runs")

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/workflows/"+workflow.ID+"/execute", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet,
			fmt.Sprintf("/executions?workflow_id=%s", workflow.ID), nil))
		if err != nil {
			return false
		}

		var listing struct {
			Executions []*models.WorkflowExecution `json:"executions"`
		}

		if json.NewDecoder(resp.Body).Decode(&listing) != nil {
			return false
		}

		return len(listing.Executions) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelExecution_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/executions/exec-ghost/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTemplateLifecycle(t *testing.T) {
	app, _ := setupTestApp(t)

	createResp, err := app.Test(jsonRequest(t, http.MethodPost, "/templates", services.CreateTemplateRequest{
		Name:     "Pipeline Template",
		Category: "analysis",
		Definition: models.WorkflowDefinition{
			Nodes: []*models.WorkflowNode{
				{ID: "start", Type: models.NodeTypeTrigger},
				{ID: "n1", Type: models.NodeTypeAgent, Data: models.NodeData{AgentID: "worker"}},
			},
			Connections: []*models.Connection{
				{ID: "c1", Source: "start", Target: "n1"},
			},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, createResp.StatusCode)

	var template models.WorkflowTemplate
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&template))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/templates", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	instResp, err := app.Test(jsonRequest(t, http.MethodPost, "/templates/"+template.ID+"/instantiate",
		services.InstantiateRequest{Name: "From Template"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, instResp.StatusCode)

	var workflow models.Workflow
	require.NoError(t, json.NewDecoder(instResp.Body).Decode(&workflow))
	assert.NotEqual(t, template.ID, workflow.ID)

	getResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/templates/"+template.ID, nil))
	require.NoError(t, err)

	var reloaded models.WorkflowTemplate
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&reloaded))
	assert.Equal(t, int64(1), reloaded.UsageCount)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
