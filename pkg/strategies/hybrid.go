package strategies

import (
	"context"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// HybridResult combines the outcomes of the two execution phases.
type HybridResult struct {
	Sequential any           `json:"sequential,omitempty"`
	Parallel   []AgentResult `json:"parallel,omitempty"`
}

// HybridStrategy partitions agent nodes by their declared execution mode:
// the sequential subset runs first as a graph walk, then the parallel
// subset fans out concurrently with the sequential outcome folded into the
// shared context.
type HybridStrategy struct {
	deps Deps
}

func NewHybrid(deps Deps) *HybridStrategy {
	return &HybridStrategy{deps: deps}
}

func (h *HybridStrategy) Name() models.StrategyType {
	return models.StrategyHybrid
}

func (h *HybridStrategy) Execute(ctx context.Context, input *Input) (any, error) {
	sequential, parallel := h.partition(input.Nodes)

	result := &HybridResult{}

	if len(sequential) > 0 {
		subInput := &Input{
			Nodes:       sequential,
			Connections: input.Connections,
			Context:     input.Context,
			SessionID:   input.SessionID,
		}

		seqResult, err := NewSequential(h.deps).Execute(ctx, subInput)
		if err != nil {
			return nil, err
		}

		result.Sequential = seqResult
	}

	if len(parallel) > 0 {
		parallelCtx := input.Context

		if seq, ok := result.Sequential.(*SequentialResult); ok && seq.Final != nil {
			parallelCtx = make(map[string]any, len(input.Context)+1)
			for k, v := range input.Context {
				parallelCtx[k] = v
			}

			parallelCtx["sequential_result"] = seq.Final
		}

		subInput := &Input{
			Nodes:       parallel,
			Connections: input.Connections,
			Context:     parallelCtx,
			SessionID:   input.SessionID,
		}

		parResults, err := NewParallel(h.deps).run(ctx, subInput, parallel)
		if err != nil {
			return nil, err
		}

		result.Parallel = parResults
	}

	return result, nil
}

// partition splits the nodes by execution mode. Non-agent nodes ride along
// with the sequential subset so the walk still has its trigger and routing
// nodes; agents default to sequential. The sequential phase runs whenever
// the subset contains any executable node, agent or tool.
func (h *HybridStrategy) partition(nodes []*models.WorkflowNode) (sequential, parallel []*models.WorkflowNode) {
	hasSequentialWork := false

	for _, node := range nodes {
		if node.Type == models.NodeTypeAgent && node.ExecutionMode() == "parallel" {
			parallel = append(parallel, node)

			continue
		}

		if node.Type == models.NodeTypeAgent {
			hasSequentialWork = true
		}

		if _, _, ok := toolCall(node); ok {
			hasSequentialWork = true
		}

		sequential = append(sequential, node)
	}

	if !hasSequentialWork {
		sequential = nil
	}

	return sequential, parallel
}
