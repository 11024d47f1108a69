package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow. The engine
// never transitions a workflow between statuses on its own; callers promote
// and demote explicitly.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, created by default
	WorkflowStatusActive   WorkflowStatus = "active"   // Promoted by the caller
	WorkflowStatusArchived WorkflowStatus = "archived" // Retired, kept for history
)

// Valid reports whether s is a known workflow status.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusDraft, WorkflowStatusActive, WorkflowStatusArchived:
		return true
	default:
		return false
	}
}

// WorkflowType describes the intended agent behavior of the workflow. It is
// independent of the execution strategy.
type WorkflowType string

const (
	WorkflowTypeAgent   WorkflowType = "agent"
	WorkflowTypeAgentic WorkflowType = "agentic"
	WorkflowTypeHybrid  WorkflowType = "hybrid"
)

// OrchestrationMode selects between delegating a run wholesale to the
// external auto-orchestrator and running one of the built-in strategies.
type OrchestrationMode string

const (
	OrchestrationModeAuto   OrchestrationMode = "auto"
	OrchestrationModeManual OrchestrationMode = "manual"
)

// StrategyType is the graph-execution algorithm used in manual mode.
type StrategyType string

const (
	StrategySequential  StrategyType = "sequential"
	StrategyParallel    StrategyType = "parallel"
	StrategyConditional StrategyType = "conditional"
	StrategyHybrid      StrategyType = "hybrid"
)

// Valid reports whether t is a known strategy.
func (t StrategyType) Valid() bool {
	switch t {
	case StrategySequential, StrategyParallel, StrategyConditional, StrategyHybrid:
		return true
	default:
		return false
	}
}

// OrchestrationRule is an ordered routing rule for the auto orchestrator.
type OrchestrationRule struct {
	Condition string `json:"condition"`
	Target    string `json:"target"`
	Priority  int    `json:"priority,omitempty"`
}

// AgentSwitching configures mid-run agent handoff in auto mode.
type AgentSwitching struct {
	Enabled     bool `json:"enabled"`
	MaxSwitches int  `json:"max_switches,omitempty"`
}

// OrchestrationConfig holds manual-mode strategy selection and auto-mode hints.
type OrchestrationConfig struct {
	Strategy       StrategyType        `json:"strategy,omitempty"`
	Rules          []OrchestrationRule `json:"rules,omitempty"`
	ContextSharing string              `json:"context_sharing,omitempty"` // full, selective, private
	AgentSwitching *AgentSwitching     `json:"agent_switching,omitempty"`
}

// RetryPolicy is advisory metadata; the engine itself never retries.
type RetryPolicy struct {
	MaxAttempts     int           `json:"max_attempts"`
	BackoffStrategy string        `json:"backoff_strategy,omitempty"`
	RetryDelay      time.Duration `json:"retry_delay,omitempty"`
}

// ErrorHandling is advisory metadata for collaborator-side error policies.
type ErrorHandling struct {
	Strategy string `json:"strategy"`
}

// OrchestrationSettings configures how a workflow's runs are orchestrated.
// Timeout is advisory only and not enforced by any executor.
type OrchestrationSettings struct {
	Mode          OrchestrationMode    `json:"orchestration_mode,omitempty"`
	Config        *OrchestrationConfig `json:"orchestration_config,omitempty"`
	Timeout       time.Duration        `json:"timeout,omitempty"`
	RetryPolicy   *RetryPolicy         `json:"retry_policy,omitempty"`
	ErrorHandling *ErrorHandling       `json:"error_handling,omitempty"`
}

// WorkflowDefinition is the executable part of a workflow: the node graph,
// its variables, and its orchestration settings. Templates store one of
// these; workflows embed one.
type WorkflowDefinition struct {
	Nodes       []*WorkflowNode        `json:"nodes"`
	Connections []*Connection          `json:"connections"`
	Variables   map[string]any         `json:"variables,omitempty"`
	Settings    *OrchestrationSettings `json:"settings,omitempty"`
}

// Workflow is a named, versioned workflow definition.
type Workflow struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"        validate:"required,min=3"`
	Description  string         `json:"description"`
	WorkflowType WorkflowType   `json:"workflow_type"`
	Status       WorkflowStatus `json:"status"      validate:"required"`
	WorkflowDefinition
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TriggerNode returns the workflow's trigger node, or nil when the
// definition is invalid and has none.
func (d *WorkflowDefinition) TriggerNode() *WorkflowNode {
	for _, node := range d.Nodes {
		if node.Type == NodeTypeTrigger {
			return node
		}
	}

	return nil
}

// NodeByID looks a node up by id.
func (d *WorkflowDefinition) NodeByID(id string) *WorkflowNode {
	for _, node := range d.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// Mode returns the orchestration mode, defaulting to manual when unset.
func (d *WorkflowDefinition) Mode() OrchestrationMode {
	if d.Settings == nil || d.Settings.Mode == "" {
		return OrchestrationModeManual
	}

	return d.Settings.Mode
}

// Strategy returns the manual-mode strategy, defaulting to sequential.
func (d *WorkflowDefinition) Strategy() StrategyType {
	if d.Settings == nil || d.Settings.Config == nil || d.Settings.Config.Strategy == "" {
		return StrategySequential
	}

	return d.Settings.Config.Strategy
}
