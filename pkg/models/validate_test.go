package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triggerNode(id string) *WorkflowNode {
	return &WorkflowNode{ID: id, Type: NodeTypeTrigger}
}

func agentNode(id, agentID string) *WorkflowNode {
	return &WorkflowNode{ID: id, Type: NodeTypeAgent, Data: NodeData{AgentID: agentID}}
}

func TestValidate_ValidDefinition(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: []*WorkflowNode{
			triggerNode("start"),
			agentNode("a", "agent-1"),
		},
		Connections: []*Connection{
			{ID: "c1", Source: "start", Target: "a"},
		},
	}

	assert.NoError(t, def.Validate())
}

func TestValidate_NoTriggerNode(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: []*WorkflowNode{agentNode("a", "agent-1")},
	}

	err := def.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTriggerNode)
	assert.True(t, IsDefinitionInvalid(err))
}

func TestValidate_MultipleTriggerNodes(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: []*WorkflowNode{triggerNode("t1"), triggerNode("t2")},
	}

	err := def.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMultipleTriggerNodes)
}

func TestValidate_DanglingConnection(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: []*WorkflowNode{triggerNode("start")},
		Connections: []*Connection{
			{ID: "c1", Source: "start", Target: "ghost"},
		},
	}

	err := def.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDanglingConnection)
}

func TestValidate_DuplicateNodeID(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: []*WorkflowNode{triggerNode("start"), agentNode("start", "agent-1")},
	}

	err := def.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateNodeID)
}

func TestValidate_UnknownNodeType(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: []*WorkflowNode{
			triggerNode("start"),
			{ID: "x", Type: NodeType("widget")},
		},
	}

	err := def.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidNodeType)
}

func TestValidate_SelfLoopPermitted(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: []*WorkflowNode{
			triggerNode("start"),
			agentNode("a", "agent-1"),
		},
		Connections: []*Connection{
			{ID: "c1", Source: "start", Target: "a"},
			{ID: "c2", Source: "a", Target: "a"},
		},
	}

	assert.NoError(t, def.Validate())
}

func TestDefinition_Defaults(t *testing.T) {
	def := &WorkflowDefinition{}

	assert.Equal(t, OrchestrationModeManual, def.Mode())
	assert.Equal(t, StrategySequential, def.Strategy())

	def.Settings = &OrchestrationSettings{
		Mode:   OrchestrationModeAuto,
		Config: &OrchestrationConfig{Strategy: StrategyHybrid},
	}

	assert.Equal(t, OrchestrationModeAuto, def.Mode())
	assert.Equal(t, StrategyHybrid, def.Strategy())
}
