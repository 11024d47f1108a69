// Package strategies implements the orchestration strategies that walk a
// workflow graph and drive its agents: sequential, parallel, conditional,
// and hybrid.
package strategies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/collaborator"
	"github.com/flowgrid/flowgrid/pkg/expression"
	"github.com/flowgrid/flowgrid/pkg/models"
)

// ErrUnknownStrategy is returned by ForType for an unrecognized strategy.
var ErrUnknownStrategy = errors.New("unknown orchestration strategy")

// Input carries the graph and the execution context into a strategy run.
type Input struct {
	Nodes       []*models.WorkflowNode
	Connections []*models.Connection
	Context     map[string]any
	SessionID   string
}

// ErrNoToolExecutor is returned when a graph contains a tool node but no
// tool executor was configured.
var ErrNoToolExecutor = errors.New("no tool executor configured")

// Deps are the collaborators every strategy needs.
type Deps struct {
	Agents    collaborator.AgentClient
	Tools     collaborator.ToolExecutor
	Evaluator *expression.Evaluator
	Logger    *slog.Logger
}

// AgentResult is the outcome of one agent node invocation.
type AgentResult struct {
	NodeID  string `json:"node_id"`
	AgentID string `json:"agent_id"`
	Result  string `json:"result"`
}

// Strategy executes a workflow graph according to one orchestration scheme.
type Strategy interface {
	Name() models.StrategyType
	Execute(ctx context.Context, input *Input) (any, error)
}

// ForType returns the strategy implementing the given type.
func ForType(strategyType models.StrategyType, deps Deps) (Strategy, error) {
	switch strategyType {
	case models.StrategySequential:
		return NewSequential(deps), nil
	case models.StrategyParallel:
		return NewParallel(deps), nil
	case models.StrategyConditional:
		return NewConditional(deps), nil
	case models.StrategyHybrid:
		return NewHybrid(deps), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategyType)
	}
}

// invokeAgent sends the node's prompt plus the upstream payload to the
// agent service. Autonomous nodes get a mode tag so the service lets the
// agent plan its own tool use.
func invokeAgent(ctx context.Context, deps Deps, node *models.WorkflowNode, payload any, sessionID string) (string, error) {
	message := agentMessage(node, payload)

	if node.Data.AgentID != "" {
		return deps.Agents.ChatWithAgent(ctx, node.Data.AgentID, message, sessionID)
	}

	return deps.Agents.Chat(ctx, message, sessionID)
}

func agentMessage(node *models.WorkflowNode, payload any) string {
	prompt := node.Data.Label

	if p, ok := node.Data.Config["prompt"].(string); ok && p != "" {
		prompt = p
	}

	message := prompt

	if payload != nil {
		serialized, err := json.Marshal(payload)
		if err == nil && string(serialized) != "null" && string(serialized) != "{}" {
			if message != "" {
				message += "\n\n"
			}

			message += "Input: " + string(serialized)
		}
	}

	if node.Data.AgentMode == models.AgentModeAutonomous {
		message = "[autonomous] " + message
	}

	return message
}

// toolCall extracts a custom node's tool invocation, if it declares one.
func toolCall(node *models.WorkflowNode) (string, map[string]any, bool) {
	if node.Type != models.NodeTypeCustom {
		return "", nil, false
	}

	name, ok := node.Data.Config["tool"].(string)
	if !ok || name == "" {
		return "", nil, false
	}

	parameters, _ := node.Data.Config["parameters"].(map[string]any)

	return name, parameters, true
}

// invokeTool runs a custom node's tool through the tool service. A failed
// tool result fails the node.
func invokeTool(ctx context.Context, deps Deps, node *models.WorkflowNode, name string, parameters map[string]any) (any, error) {
	if deps.Tools == nil {
		return nil, fmt.Errorf("node %s: %w", node.ID, ErrNoToolExecutor)
	}

	result, err := deps.Tools.ExecuteTool(ctx, name, parameters)
	if err != nil {
		return nil, fmt.Errorf("tool %s failed on node %s: %w", name, node.ID, err)
	}

	if !result.Success {
		return nil, fmt.Errorf("tool %s failed on node %s: %s", name, node.ID, result.Error)
	}

	return result.Result, nil
}

// conditionEnv builds the environment condition expressions evaluate
// against: the shared execution context plus the results accumulated so far.
func conditionEnv(input *Input, results map[string]any, last any) map[string]any {
	env := make(map[string]any, len(input.Context)+3)

	for k, v := range input.Context {
		env[k] = v
	}

	env["input"] = input.Context
	env["results"] = results
	env["result"] = last

	return env
}

// outgoing returns the connections leaving the given node, in declaration
// order.
func outgoing(connections []*models.Connection, nodeID string) []*models.Connection {
	out := make([]*models.Connection, 0, 2)

	for _, conn := range connections {
		if conn.Source == nodeID {
			out = append(out, conn)
		}
	}

	return out
}

func nodeByID(nodes []*models.WorkflowNode, id string) *models.WorkflowNode {
	for _, node := range nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

func triggerNode(nodes []*models.WorkflowNode) *models.WorkflowNode {
	for _, node := range nodes {
		if node.Type == models.NodeTypeTrigger {
			return node
		}
	}

	return nil
}
