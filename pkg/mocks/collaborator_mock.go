package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/flowgrid/flowgrid/pkg/collaborator"
)

// MockAgentClient is a mock implementation of collaborator.AgentClient.
type MockAgentClient struct {
	mock.Mock
}

func (m *MockAgentClient) Chat(ctx context.Context, message, sessionID string) (string, error) {
	args := m.Called(ctx, message, sessionID)

	return args.String(0), args.Error(1)
}

func (m *MockAgentClient) ChatWithAgent(ctx context.Context, agentID, message, sessionID string) (string, error) {
	args := m.Called(ctx, agentID, message, sessionID)

	return args.String(0), args.Error(1)
}

// MockToolExecutor is a mock implementation of collaborator.ToolExecutor.
type MockToolExecutor struct {
	mock.Mock
}

func (m *MockToolExecutor) ExecuteTool(ctx context.Context, toolName string, parameters map[string]any) (*collaborator.ToolResult, error) {
	args := m.Called(ctx, toolName, parameters)

	result, _ := args.Get(0).(*collaborator.ToolResult)

	return result, args.Error(1)
}

// MockToolCatalog is a mock implementation of collaborator.ToolCatalog.
type MockToolCatalog struct {
	mock.Mock
}

func (m *MockToolCatalog) ListTools(ctx context.Context) ([]collaborator.ToolDescriptor, error) {
	args := m.Called(ctx)

	tools, _ := args.Get(0).([]collaborator.ToolDescriptor)

	return tools, args.Error(1)
}
