package strategies

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// ParallelStrategy runs every agent node concurrently against the same
// input context. The join is all-or-nothing: one failure cancels the rest
// and fails the run.
type ParallelStrategy struct {
	deps Deps
}

func NewParallel(deps Deps) *ParallelStrategy {
	return &ParallelStrategy{deps: deps}
}

func (p *ParallelStrategy) Name() models.StrategyType {
	return models.StrategyParallel
}

func (p *ParallelStrategy) Execute(ctx context.Context, input *Input) (any, error) {
	return p.run(ctx, input, input.Nodes)
}

// run executes the agent nodes of the given subset concurrently. Agent
// nodes without a bound agent are skipped entirely. Results keep the
// subset's declaration order regardless of completion order.
func (p *ParallelStrategy) run(ctx context.Context, input *Input, nodes []*models.WorkflowNode) ([]AgentResult, error) {
	agents := make([]*models.WorkflowNode, 0, len(nodes))

	for _, node := range nodes {
		if node.IsAgentNode() {
			agents = append(agents, node)
		}
	}

	results := make([]AgentResult, len(agents))

	group, groupCtx := errgroup.WithContext(ctx)

	for i, node := range agents {
		group.Go(func() error {
			response, err := invokeAgent(groupCtx, p.deps, node, input.Context, input.SessionID)
			if err != nil {
				return err
			}

			results[i] = AgentResult{NodeID: node.ID, AgentID: node.Data.AgentID, Result: response}

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}
