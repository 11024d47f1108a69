// Package models defines the core domain models for node-based workflow orchestration.
package models

// NodeType is the closed set of node kinds a workflow graph may contain.
// Every node carries exactly one of these; unknown kinds are rejected at
// definition time so the strategy executors can match exhaustively.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAgent     NodeType = "agent"
	NodeTypeCondition NodeType = "condition"
	NodeTypeMerger    NodeType = "merger"
	NodeTypeOutput    NodeType = "output"
	NodeTypeCustom    NodeType = "custom"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeTrigger, NodeTypeAgent, NodeTypeCondition,
		NodeTypeMerger, NodeTypeOutput, NodeTypeCustom:
		return true
	default:
		return false
	}
}

// AgentMode describes how an agent node expects its backing agent to behave.
type AgentMode string

const (
	AgentModeStructured AgentMode = "structured"
	AgentModeAutonomous AgentMode = "autonomous"
)

// Position is the node's placement on the canvas. Presentation only, the
// engine never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData holds the per-node payload: which agent to invoke, how, and any
// free-form configuration a node handler may consume.
type NodeData struct {
	AgentID    string         `json:"agent_id,omitempty"`
	AgentMode  AgentMode      `json:"agent_mode,omitempty"`
	Label      string         `json:"label,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// WorkflowNode is a node instance in a workflow graph.
type WorkflowNode struct {
	ID       string   `json:"id"   validate:"required"`
	Type     NodeType `json:"type" validate:"required"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// IsAgentNode reports whether the node is an agent node with a bound agent.
func (n *WorkflowNode) IsAgentNode() bool {
	return n.Type == NodeTypeAgent && n.Data.AgentID != ""
}

// Condition returns the boolean expression configured on a condition node.
// Looks in data.config first, then data.parameters.
func (n *WorkflowNode) Condition() string {
	if expr, ok := n.Data.Config["condition"].(string); ok {
		return expr
	}

	if expr, ok := n.Data.Parameters["condition"].(string); ok {
		return expr
	}

	return ""
}

// ExecutionMode returns the hybrid-strategy partition flag from the node
// config. Nodes without the flag default to the sequential subset.
func (n *WorkflowNode) ExecutionMode() string {
	if mode, ok := n.Data.Config["executionMode"].(string); ok {
		return mode
	}

	return "sequential"
}

// ConnectionData carries optional routing metadata on an edge.
type ConnectionData struct {
	Condition   string            `json:"condition,omitempty"`
	DataMapping map[string]string `json:"data_mapping,omitempty"`
}

// Connection is a directed edge between two nodes in the same workflow.
type Connection struct {
	ID           string          `json:"id"     validate:"required"`
	Source       string          `json:"source" validate:"required"`
	Target       string          `json:"target" validate:"required"`
	SourceHandle string          `json:"source_handle,omitempty"`
	TargetHandle string          `json:"target_handle,omitempty"`
	Data         *ConnectionData `json:"data,omitempty"`
}

// ConditionExpression returns the routing condition on the edge, if any.
func (c *Connection) ConditionExpression() string {
	if c.Data == nil {
		return ""
	}

	return c.Data.Condition
}
