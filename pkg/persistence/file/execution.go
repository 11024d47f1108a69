package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// ExecutionRepository handles execution-record file operations.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "workflow_executions")
}

// Save upserts the execution record. Concurrent executions write disjoint
// files; the mutex only guards against torn writes of the same record.
func (er *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	if err := validateID(execution.ID); err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execution.ID, Err: err}
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	return writeRecord(er.dir(), execution.ID, execution)
}

// GetByID loads an execution by id. Returns (nil, nil) when absent.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	if err := validateID(id); err != nil {
		return nil, &persistence.ExecutionError{Op: "GetByID", ExecutionID: id, Err: err}
	}

	execution := &models.WorkflowExecution{}

	err := readRecord(er.dir(), id, execution)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, &persistence.ExecutionError{Op: "GetByID", ExecutionID: id, Err: err}
	}

	return execution, nil
}

// List returns executions filtered by workflow id and status, newest first.
func (er *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.WorkflowExecution, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	ids, err := listRecordIDs(er.dir())
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.WorkflowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := er.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if execution == nil {
			continue
		}

		if opts.WorkflowID != "" && execution.WorkflowID != opts.WorkflowID {
			continue
		}

		if opts.Status != nil && execution.Status != *opts.Status {
			continue
		}

		filtered = append(filtered, execution)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	start := opts.Offset
	if start >= len(filtered) {
		return []*models.WorkflowExecution{}, nil
	}

	end := start + opts.Limit
	if end > len(filtered) {
		end = len(filtered)
	}

	return filtered[start:end], nil
}
