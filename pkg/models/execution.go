package models

import "time"

// ExecutionStatus is the state machine of one triggered run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Valid reports whether s is a known execution status.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusPending, ExecutionStatusRunning,
		ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a final state.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. Terminal states are final; pending may be cancelled before it ever
// starts running.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case ExecutionStatusPending:
		return next == ExecutionStatusRunning || next == ExecutionStatusCancelled
	case ExecutionStatusRunning:
		return next.Terminal()
	default:
		return false
	}
}

// WorkflowExecution is one triggered run of a workflow. Created once per
// trigger call, immutable except for its status-transition fields, and never
// deleted by the engine.
type WorkflowExecution struct {
	ID           string          `json:"id"          validate:"required"`
	WorkflowID   string          `json:"workflow_id" validate:"required"`
	Status       ExecutionStatus `json:"status"`
	InputData    map[string]any  `json:"input_data,omitempty"`
	OutputData   any             `json:"output_data,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	DurationMs   int64           `json:"duration_ms,omitempty"`
}
