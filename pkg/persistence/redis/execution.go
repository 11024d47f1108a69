// Package redis provides a Redis-backed execution repository. Execution
// records are written on every status transition, which makes them the
// hottest write path in the engine; installations that want to keep that
// churn out of the durable store pair this repository with a file or
// PostgreSQL backend via persistence.WithExecutionRepository.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const (
	executionKeyPrefix = "flowgrid:execution:"
	workflowIndexKey   = "flowgrid:workflow:%s:executions"
	allIndexKey        = "flowgrid:executions"
)

// ExecutionRepository implements persistence.ExecutionRepository on Redis.
type ExecutionRepository struct {
	client *redis.Client
}

// NewExecutionRepository creates a repository from a Redis URL
// (redis://host:port/db).
func NewExecutionRepository(redisURL string) (*ExecutionRepository, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &ExecutionRepository{client: redis.NewClient(opts)}, nil
}

// Save upserts the execution record and indexes it by workflow. New records
// are pushed onto the indexes once; upserts of existing records only
// rewrite the value key.
func (er *ExecutionRepository) Save(ctx context.Context, execution *models.WorkflowExecution) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execution.ID, Err: err}
	}

	key := executionKeyPrefix + execution.ID

	existed, err := er.client.Exists(ctx, key).Result()
	if err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execution.ID, Err: err}
	}

	pipe := er.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)

	if existed == 0 {
		pipe.LPush(ctx, fmt.Sprintf(workflowIndexKey, execution.WorkflowID), execution.ID)
		pipe.LPush(ctx, allIndexKey, execution.ID)
	}

	_, err = pipe.Exec(ctx)
	if err != nil {
		return &persistence.ExecutionError{Op: "Save", ExecutionID: execution.ID, Err: err}
	}

	return nil
}

// GetByID loads an execution by id. Returns (nil, nil) when absent.
func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	data, err := er.client.Get(ctx, executionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, &persistence.ExecutionError{Op: "GetByID", ExecutionID: id, Err: err}
	}

	execution := &models.WorkflowExecution{}

	err = json.Unmarshal(data, execution)
	if err != nil {
		return nil, &persistence.ExecutionError{Op: "GetByID", ExecutionID: id, Err: err}
	}

	return execution, nil
}

// List returns executions from the newest-first index, applying the status
// filter client-side.
func (er *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.WorkflowExecution, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	index := allIndexKey
	if opts.WorkflowID != "" {
		index = fmt.Sprintf(workflowIndexKey, opts.WorkflowID)
	}

	ids, err := er.client.LRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read execution index: %w", err)
	}

	matched := 0
	executions := make([]*models.WorkflowExecution, 0, opts.Limit)

	for _, id := range ids {
		execution, err := er.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if execution == nil {
			continue
		}

		if opts.Status != nil && execution.Status != *opts.Status {
			continue
		}

		matched++
		if matched <= opts.Offset {
			continue
		}

		executions = append(executions, execution)
		if len(executions) >= opts.Limit {
			break
		}
	}

	return executions, nil
}

// HealthCheck pings the Redis server.
func (er *ExecutionRepository) HealthCheck(ctx context.Context) error {
	return er.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (er *ExecutionRepository) Close() error {
	return er.client.Close()
}
