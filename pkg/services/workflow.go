package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow handles workflow-related business operations.
type Workflow struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: persistence,
		validator:   validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateWorkflowRequest represents the request to create a workflow.
type CreateWorkflowRequest struct {
	Name         string                    `json:"name"`
	Description  string                    `json:"description"`
	WorkflowType models.WorkflowType       `json:"workflow_type"`
	Definition   models.WorkflowDefinition `json:"definition"`
}

// Create validates the definition, assigns an id, and stores the workflow
// as a draft.
func (w *Workflow) Create(ctx context.Context, req *CreateWorkflowRequest) (*models.Workflow, error) {
	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:                 models.NewWorkflowID(req.Name),
		Name:               strings.TrimSpace(req.Name),
		Description:        req.Description,
		WorkflowType:       req.WorkflowType,
		Status:             models.WorkflowStatusDraft,
		WorkflowDefinition: req.Definition,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if workflow.WorkflowType == "" {
		workflow.WorkflowType = models.WorkflowTypeAgent
	}

	err := w.validate(workflow)
	if err != nil {
		return nil, err
	}

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// FetchByID returns a workflow by id.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Limit  int
	Offset int

	Status *models.WorkflowStatus

	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// List retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) List(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	err := w.validateListRequest(&req)
	if err != nil {
		return nil, err
	}

	result, err := w.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Limit:     req.Limit,
		Offset:    req.Offset,
		Status:    req.Status,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		if persistence.IsInvalidSortField(err) {
			return nil, ErrInvalidSortField
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// UpdateWorkflowRequest is a partial update; nil fields are left untouched.
type UpdateWorkflowRequest struct {
	Name        *string                    `json:"name,omitempty"`
	Description *string                    `json:"description,omitempty"`
	Status      *models.WorkflowStatus     `json:"status,omitempty"`
	Definition  *models.WorkflowDefinition `json:"definition,omitempty"`
}

// Update applies a partial update and bumps the version.
func (w *Workflow) Update(ctx context.Context, id string, req *UpdateWorkflowRequest) (*models.Workflow, error) {
	workflow, err := w.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.Status == models.WorkflowStatusArchived && req.Status == nil {
		return nil, ErrWorkflowArchived
	}

	if req.Name != nil {
		workflow.Name = strings.TrimSpace(*req.Name)
	}

	if req.Description != nil {
		workflow.Description = *req.Description
	}

	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, NewValidationError("Update", "INVALID_STATUS",
				fmt.Sprintf("invalid status '%s'", *req.Status), ErrInvalidStatus)
		}

		workflow.Status = *req.Status
	}

	if req.Definition != nil {
		workflow.WorkflowDefinition = *req.Definition
	}

	err = w.validate(workflow)
	if err != nil {
		return nil, err
	}

	workflow.Version++
	workflow.UpdatedAt = time.Now().UTC()

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// Delete removes a workflow. Its execution history is kept.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	_, err := w.FetchByID(ctx, id)
	if err != nil {
		return err
	}

	err = w.persistence.WorkflowRepository().Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// validate runs struct-tag validation plus graph-level definition checks.
func (w *Workflow) validate(workflow *models.Workflow) error {
	err := w.validator.Struct(workflow)
	if err != nil {
		return NewValidationError("validate", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	err = workflow.WorkflowDefinition.Validate()
	if err != nil {
		return NewValidationError("validate", "INVALID_DEFINITION", err.Error(), ErrInvalidDefinition)
	}

	if workflow.Settings != nil && workflow.Settings.Config != nil {
		strategy := workflow.Settings.Config.Strategy
		if strategy != "" && !strategy.Valid() {
			return NewValidationError("validate", "INVALID_STRATEGY",
				fmt.Sprintf("invalid strategy '%s'", strategy), ErrInvalidStrategy)
		}
	}

	return nil
}

func (w *Workflow) validateListRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "name"}
	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError("List", "INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError("List", "INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder)
	}

	if req.Status != nil && !req.Status.Valid() {
		return NewValidationError("List", "INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *req.Status), ErrInvalidStatus)
	}

	return nil
}
