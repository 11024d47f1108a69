// Package persistence provides the data storage abstraction for workflows,
// executions, and templates.
package persistence

import (
	"context"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// ListWorkflowsOptions filters and pages workflow listings.
type ListWorkflowsOptions struct {
	Limit     int
	Offset    int
	Status    *models.WorkflowStatus
	SortBy    string // created_at, updated_at, name
	SortOrder string // asc, desc
}

// WorkflowListResult is a page of workflows plus paging metadata.
type WorkflowListResult struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListExecutionsOptions filters and pages execution listings.
type ListExecutionsOptions struct {
	WorkflowID string
	Status     *models.ExecutionStatus
	Limit      int
	Offset     int
}

// WorkflowRepository persists workflow records. GetByID returns (nil, nil)
// when the workflow does not exist; callers map that to a not-found error.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository persists execution records. Save is an upsert; the
// execution tracker is the only writer after creation.
type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	List(ctx context.Context, opts ListExecutionsOptions) ([]*models.WorkflowExecution, error)
}

// TemplateRepository persists workflow templates. IncrementUsage bumps
// usage_count by exactly one.
type TemplateRepository interface {
	Save(ctx context.Context, template *models.WorkflowTemplate) error
	GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error)
	List(ctx context.Context) ([]*models.WorkflowTemplate, error)
	IncrementUsage(ctx context.Context, id string) error
}

// Persistence aggregates the three repositories behind one backend handle.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	TemplateRepository() TemplateRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WithExecutionRepository returns a Persistence identical to base except
// that executions go to the given repository. Used to pair a durable
// workflow store with a Redis execution store.
func WithExecutionRepository(base Persistence, executions ExecutionRepository) Persistence {
	return &composite{base: base, executions: executions}
}

type composite struct {
	base       Persistence
	executions ExecutionRepository
}

func (c *composite) WorkflowRepository() WorkflowRepository   { return c.base.WorkflowRepository() }
func (c *composite) ExecutionRepository() ExecutionRepository { return c.executions }
func (c *composite) TemplateRepository() TemplateRepository   { return c.base.TemplateRepository() }

func (c *composite) HealthCheck(ctx context.Context) error {
	return c.base.HealthCheck(ctx)
}

func (c *composite) Close(ctx context.Context) error {
	return c.base.Close(ctx)
}
