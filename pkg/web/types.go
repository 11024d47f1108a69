package web

// ExecuteWorkflowRequest is the body of POST /workflows/:id/execute. All
// fields are optional; an empty body starts a run with no input.
type ExecuteWorkflowRequest struct {
	Input     map[string]any `json:"input,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
}

// ExecuteWorkflowResponse acknowledges an accepted execution.
type ExecuteWorkflowResponse struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	Status      string `json:"status"`
}
