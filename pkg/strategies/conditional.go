package strategies

import (
	"context"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// NoConditionMatched is the sentinel result returned when every route's
// condition evaluates false. Not an error: a conditional workflow where
// nothing applies completes successfully with this outcome.
const NoConditionMatched = "no condition matched"

// ConditionalResult is the outcome of a conditional dispatch: which route
// matched and what the routed agent produced.
type ConditionalResult struct {
	Matched          bool   `json:"matched"`
	MatchedCondition string `json:"matched_condition,omitempty"`
	NodeID           string `json:"node_id,omitempty"`
	AgentID          string `json:"agent_id,omitempty"`
	Result           any    `json:"result"`
}

// ConditionalStrategy evaluates condition-node expressions and runs only
// the first matching route.
type ConditionalStrategy struct {
	deps Deps
}

func NewConditional(deps Deps) *ConditionalStrategy {
	return &ConditionalStrategy{deps: deps}
}

func (c *ConditionalStrategy) Name() models.StrategyType {
	return models.StrategyConditional
}

// Execute evaluates each condition node's expression in declaration order
// and, on the first match, follows its outgoing connections to the first
// reachable agent. Graphs without condition nodes fall back to the
// conditions on the trigger's outgoing connections.
func (c *ConditionalStrategy) Execute(ctx context.Context, input *Input) (any, error) {
	env := conditionEnv(input, map[string]any{}, nil)

	routes := c.conditionRoutes(input)

	for _, route := range routes {
		if !c.deps.Evaluator.Evaluate(route.condition, env) {
			continue
		}

		agent := c.firstAgent(input, route.target)
		if agent == nil {
			continue
		}

		response, err := invokeAgent(ctx, c.deps, agent, input.Context, input.SessionID)
		if err != nil {
			return nil, err
		}

		return &ConditionalResult{
			Matched:          true,
			MatchedCondition: route.condition,
			NodeID:           agent.ID,
			AgentID:          agent.Data.AgentID,
			Result:           response,
		}, nil
	}

	c.deps.Logger.DebugContext(ctx, "no conditional route matched", "routes", len(routes))

	return &ConditionalResult{Result: NoConditionMatched}, nil
}

type route struct {
	condition string
	target    string
}

// conditionRoutes lists the candidate routes in declaration order: one per
// condition node, or one per trigger edge when the graph routes on edge
// conditions instead.
func (c *ConditionalStrategy) conditionRoutes(input *Input) []route {
	routes := make([]route, 0, 2)

	for _, node := range input.Nodes {
		if node.Type != models.NodeTypeCondition {
			continue
		}

		routes = append(routes, route{condition: node.Condition(), target: node.ID})
	}

	if len(routes) > 0 {
		return routes
	}

	trigger := triggerNode(input.Nodes)
	if trigger == nil {
		return nil
	}

	for _, conn := range outgoing(input.Connections, trigger.ID) {
		routes = append(routes, route{condition: conn.ConditionExpression(), target: conn.Target})
	}

	return routes
}

// firstAgent walks forward from the given node until it reaches an agent,
// passing through condition and merger nodes. Cycle-safe.
func (c *ConditionalStrategy) firstAgent(input *Input, startID string) *models.WorkflowNode {
	visited := make(map[string]bool)
	current := nodeByID(input.Nodes, startID)

	for current != nil && !visited[current.ID] {
		if current.Type == models.NodeTypeAgent {
			return current
		}

		visited[current.ID] = true

		next := outgoing(input.Connections, current.ID)
		if len(next) == 0 {
			return nil
		}

		current = nodeByID(input.Nodes, next[0].Target)
	}

	return nil
}
