// Package collaborator defines the engine's outbound contracts: the agent
// service that performs the actual reasoning work, the tool execution
// service, and the MCP tool catalogs. The engine orchestrates; these
// collaborators do.
package collaborator

import "context"

// AgentClient sends messages to the agent service.
type AgentClient interface {
	// Chat sends a message without pinning a specific agent; the service
	// picks one. Returns the agent's textual response.
	Chat(ctx context.Context, message, sessionID string) (string, error)

	// ChatWithAgent sends a message to one specific agent.
	ChatWithAgent(ctx context.Context, agentID, message, sessionID string) (string, error)
}

// ToolResult is the outcome of a single tool invocation.
type ToolResult struct {
	Success         bool   `json:"success"`
	Result          any    `json:"result,omitempty"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// ToolExecutor invokes named tools with structured parameters.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, toolName string, parameters map[string]any) (*ToolResult, error)
}

// ToolDescriptor describes one tool advertised by an MCP server.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	ServerID    string         `json:"server_id,omitempty"`
}

// ToolCatalog lists the tools an MCP server offers.
type ToolCatalog interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
}
