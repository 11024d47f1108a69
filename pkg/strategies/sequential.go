package strategies

import (
	"context"
	"errors"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// ErrNoTriggerNode is returned when the graph has no entry point to walk
// from.
var ErrNoTriggerNode = errors.New("graph has no trigger node")

// SequentialResult is the outcome of a sequential walk: every node's output
// plus the output of the last agent reached.
type SequentialResult struct {
	NodeResults map[string]any `json:"node_results"`
	Final       any            `json:"final"`
}

// SequentialStrategy walks the graph from the trigger, one node at a time,
// feeding each agent the output of the previous one.
type SequentialStrategy struct {
	deps Deps
}

func NewSequential(deps Deps) *SequentialStrategy {
	return &SequentialStrategy{deps: deps}
}

func (s *SequentialStrategy) Name() models.StrategyType {
	return models.StrategySequential
}

// Execute walks from the trigger following the first outgoing connection
// whose condition holds. A visited set terminates the walk when the graph
// loops back on itself.
func (s *SequentialStrategy) Execute(ctx context.Context, input *Input) (any, error) {
	trigger := triggerNode(input.Nodes)
	if trigger == nil {
		return nil, ErrNoTriggerNode
	}

	results := make(map[string]any)
	visited := make(map[string]bool)

	var last any

	current := trigger

	for current != nil {
		if visited[current.ID] {
			break
		}

		visited[current.ID] = true

		switch {
		case current.Type == models.NodeTypeAgent:
			response, err := invokeAgent(ctx, s.deps, current, last, input.SessionID)
			if err != nil {
				return nil, err
			}

			results[current.ID] = response
			last = response

			s.deps.Logger.DebugContext(ctx, "agent node completed",
				"node_id", current.ID, "agent_id", current.Data.AgentID)
		default:
			if name, parameters, ok := toolCall(current); ok {
				output, err := invokeTool(ctx, s.deps, current, name, parameters)
				if err != nil {
					return nil, err
				}

				results[current.ID] = output
				last = output

				s.deps.Logger.DebugContext(ctx, "tool node completed",
					"node_id", current.ID, "tool", name)
			}
		}

		current = s.next(input, current, results, last)
	}

	return &SequentialResult{NodeResults: results, Final: last}, nil
}

// next picks the first outgoing connection whose condition evaluates true.
func (s *SequentialStrategy) next(input *Input, current *models.WorkflowNode, results map[string]any, last any) *models.WorkflowNode {
	env := conditionEnv(input, results, last)

	for _, conn := range outgoing(input.Connections, current.ID) {
		if !s.deps.Evaluator.Evaluate(conn.ConditionExpression(), env) {
			continue
		}

		return nodeByID(input.Nodes, conn.Target)
	}

	return nil
}
