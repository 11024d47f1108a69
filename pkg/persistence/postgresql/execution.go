package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// ExecutionRepository handles execution-record database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts the execution record.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	inputData, err := json.Marshal(execution.InputData)
	if err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execution.ID, Err: err}
	}

	outputData, err := json.Marshal(execution.OutputData)
	if err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execution.ID, Err: err}
	}

	query := `
		INSERT INTO workflow_executions (id, workflow_id, status, input_data, output_data, error_message, session_id, user_id, created_at, started_at, completed_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , output_data = EXCLUDED.output_data
		  , error_message = EXCLUDED.error_message
		  , started_at = EXCLUDED.started_at
		  , completed_at = EXCLUDED.completed_at
		  , duration_ms = EXCLUDED.duration_ms
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		inputData,
		outputData,
		execution.ErrorMessage,
		execution.SessionID,
		execution.UserID,
		execution.CreatedAt,
		execution.StartedAt,
		execution.CompletedAt,
		execution.DurationMs,
	)
	if err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execution.ID, Err: err}
	}

	return nil
}

// GetByID returns an execution by its ID, or (nil, nil) when absent.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , status
		  , input_data
		  , output_data
		  , error_message
		  , session_id
		  , user_id
		  , created_at
		  , started_at
		  , completed_at
		  , duration_ms
		FROM workflow_executions
		WHERE id = $1
	`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, &persistence.ExecutionError{Op: "GetByID", ExecutionID: id, Err: err}
	}

	return execution, nil
}

// List returns executions filtered by workflow id and status, newest first.
func (r *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.WorkflowExecution, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	where := "WHERE 1=1"
	args := []any{}

	if opts.WorkflowID != "" {
		args = append(args, opts.WorkflowID)
		where += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, *opts.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query := fmt.Sprintf(`
		SELECT
			id
		  , workflow_id
		  , status
		  , input_data
		  , output_data
		  , error_message
		  , session_id
		  , user_id
		  , created_at
		  , started_at
		  , completed_at
		  , duration_ms
		FROM workflow_executions
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	execution := &models.WorkflowExecution{}

	var inputData, outputData []byte

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&inputData,
		&outputData,
		&execution.ErrorMessage,
		&execution.SessionID,
		&execution.UserID,
		&execution.CreatedAt,
		&execution.StartedAt,
		&execution.CompletedAt,
		&execution.DurationMs,
	)
	if err != nil {
		return nil, err
	}

	if len(inputData) > 0 {
		err = json.Unmarshal(inputData, &execution.InputData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal input data: %w", err)
		}
	}

	if len(outputData) > 0 {
		err = json.Unmarshal(outputData, &execution.OutputData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal output data: %w", err)
		}
	}

	return execution, nil
}
