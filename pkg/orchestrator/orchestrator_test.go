package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/mocks"
	"github.com/flowgrid/flowgrid/pkg/expression"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/strategies"
)

// memoryExecutions is an in-memory persistence.ExecutionRepository.
type memoryExecutions struct {
	mu   sync.Mutex
	recs map[string]*models.WorkflowExecution
}

func newMemoryExecutions() *memoryExecutions {
	return &memoryExecutions{recs: make(map[string]*models.WorkflowExecution)}
}

func (m *memoryExecutions) Save(_ context.Context, execution *models.WorkflowExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *execution
	m.recs[execution.ID] = &clone

	return nil
}

func (m *memoryExecutions) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	execution, ok := m.recs[id]
	if !ok {
		return nil, nil
	}

	clone := *execution

	return &clone, nil
}

func (m *memoryExecutions) List(_ context.Context, _ persistence.ListExecutionsOptions) ([]*models.WorkflowExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.WorkflowExecution, 0, len(m.recs))
	for _, execution := range m.recs {
		clone := *execution
		out = append(out, &clone)
	}

	return out, nil
}

// status is polled from assert.Eventually goroutines, so it must not fail
// the test itself.
func (m *memoryExecutions) status(t *testing.T, id string) models.ExecutionStatus {
	t.Helper()

	execution, err := m.GetByID(context.Background(), id)
	if err != nil || execution == nil {
		return ""
	}

	return execution.Status
}

// recordingBus captures published events.
type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)

	return nil
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.events))
	for _, event := range b.events {
		out = append(out, string(event.GetType()))
	}

	return out
}

// stubAgent answers with a fixed response, optionally blocking until its
// context is cancelled.
type stubAgent struct {
	response string
	fail     bool
	block    bool
}

func (a *stubAgent) Chat(ctx context.Context, message, sessionID string) (string, error) {
	return a.ChatWithAgent(ctx, "", message, sessionID)
}

func (a *stubAgent) ChatWithAgent(ctx context.Context, _, _, _ string) (string, error) {
	if a.block {
		<-ctx.Done()

		return "", ctx.Err()
	}

	if a.fail {
		return "", fmt.Errorf("agent failed")
	}

	return a.response, nil
}

func testWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:     "workflow-demo-1",
		Name:   "Demo",
		Status: models.WorkflowStatusActive,
		WorkflowDefinition: models.WorkflowDefinition{
			Nodes: []*models.WorkflowNode{
				{ID: "start", Type: models.NodeTypeTrigger},
				{ID: "n1", Type: models.NodeTypeAgent, Data: models.NodeData{AgentID: "worker"}},
			},
			Connections: []*models.Connection{
				{ID: "c1", Source: "start", Target: "n1"},
			},
		},
	}
}

func newTestDispatcher(repo *memoryExecutions, bus eventbus.EventPublisher, agent *stubAgent, slots int64) (*Dispatcher, *Scheduler) {
	logger := slog.Default()
	tracker := NewTracker(repo, bus, logger)
	scheduler := NewScheduler(slots, logger)

	deps := strategies.Deps{
		Agents:    agent,
		Evaluator: expression.New(logger),
		Logger:    logger,
	}

	return NewDispatcher(tracker, scheduler, deps, nil, logger), scheduler
}

func TestTracker_LifecycleAndEvents(t *testing.T) {
	repo := newMemoryExecutions()
	bus := &recordingBus{}
	tracker := NewTracker(repo, bus, slog.Default())
	ctx := context.Background()

	execution, err := tracker.Create(ctx, "workflow-demo-1", map[string]any{"k": "v"}, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, execution.Status)
	assert.NotEmpty(t, execution.ID)

	_, err = tracker.Begin(ctx, execution.ID, models.StrategySequential, models.OrchestrationModeManual)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, repo.status(t, execution.ID))

	require.NoError(t, tracker.Complete(ctx, execution.ID, "result"))

	final, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, final.Status)
	assert.Equal(t, "result", final.OutputData)
	assert.NotNil(t, final.CompletedAt)

	assert.Equal(t, []string{"execution.started", "execution.completed"}, bus.types())
}

func TestTracker_RejectsInvalidTransitions(t *testing.T) {
	repo := newMemoryExecutions()
	tracker := NewTracker(repo, nil, slog.Default())
	ctx := context.Background()

	execution, err := tracker.Create(ctx, "workflow-demo-1", nil, "", "")
	require.NoError(t, err)

	// pending cannot complete without running first
	assert.ErrorIs(t, tracker.Complete(ctx, execution.ID, nil), ErrInvalidTransition)

	_, err = tracker.Begin(ctx, execution.ID, models.StrategySequential, models.OrchestrationModeManual)
	require.NoError(t, err)
	require.NoError(t, tracker.Fail(ctx, execution.ID, fmt.Errorf("boom")))

	// failed is terminal
	assert.ErrorIs(t, tracker.Cancel(ctx, execution.ID, "too late"), ErrInvalidTransition)
}

func TestTracker_StoreFailurePropagates(t *testing.T) {
	repo := &mocks.MockExecutionRepository{}
	tracker := NewTracker(repo, nil, slog.Default())
	ctx := context.Background()

	repo.On("Save", mock.Anything, mock.Anything).Return(fmt.Errorf("disk full"))

	_, err := tracker.Create(ctx, "workflow-demo-1", nil, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	pending := &models.WorkflowExecution{
		ID:         "exec-1",
		WorkflowID: "workflow-demo-1",
		Status:     models.ExecutionStatusPending,
	}
	repo.On("GetByID", mock.Anything, "exec-1").Return(pending, nil)

	_, err = tracker.Begin(ctx, "exec-1", models.StrategySequential, models.OrchestrationModeManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	repo.AssertExpectations(t)
}

func TestTracker_UnknownExecution(t *testing.T) {
	tracker := NewTracker(newMemoryExecutions(), nil, slog.Default())

	err := tracker.Complete(context.Background(), "exec-unknown", nil)
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestScheduler_BoundsAndCancels(t *testing.T) {
	scheduler := NewScheduler(1, slog.Default())

	started := make(chan struct{})
	release := make(chan struct{})

	err := scheduler.Submit(context.Background(), "exec-1", func(ctx context.Context) {
		close(started)
		select {
		case <-ctx.Done():
		case <-release:
		}
	})
	require.NoError(t, err)
	<-started

	// one slot, already taken
	err = scheduler.Submit(context.Background(), "exec-2", func(context.Context) {})
	assert.ErrorIs(t, err, ErrSchedulerFull)

	assert.True(t, scheduler.Running("exec-1"))
	assert.True(t, scheduler.Cancel("exec-1"))
	assert.False(t, scheduler.Cancel("exec-gone"))

	scheduler.Shutdown()

	err = scheduler.Submit(context.Background(), "exec-3", func(context.Context) {})
	assert.ErrorIs(t, err, ErrSchedulerClosed)
}

func TestDispatcher_ExecuteWorkflowCompletes(t *testing.T) {
	repo := newMemoryExecutions()
	bus := &recordingBus{}
	dispatcher, scheduler := newTestDispatcher(repo, bus, &stubAgent{response: "done"}, 4)
	defer scheduler.Shutdown()

	execution, err := dispatcher.ExecuteWorkflow(context.Background(), testWorkflow(),
		map[string]any{"topic": "go"}, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, execution.Status, "returns before the run finishes")

	assert.Eventually(t, func() bool {
		return repo.status(t, execution.ID) == models.ExecutionStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	final, err := repo.GetByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.NotNil(t, final.OutputData)
}

func TestDispatcher_RejectsInvalidDefinition(t *testing.T) {
	repo := newMemoryExecutions()
	dispatcher, scheduler := newTestDispatcher(repo, nil, &stubAgent{}, 4)
	defer scheduler.Shutdown()

	workflow := testWorkflow()
	workflow.Nodes = workflow.Nodes[1:] // drop the trigger

	_, err := dispatcher.ExecuteWorkflow(context.Background(), workflow, nil, "", "")
	require.Error(t, err)
	assert.True(t, models.IsDefinitionInvalid(err))
}

func TestDispatcher_FailureRecordsFailed(t *testing.T) {
	repo := newMemoryExecutions()
	dispatcher, scheduler := newTestDispatcher(repo, nil, &stubAgent{fail: true}, 4)
	defer scheduler.Shutdown()

	execution, err := dispatcher.ExecuteWorkflow(context.Background(), testWorkflow(), nil, "", "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return repo.status(t, execution.ID) == models.ExecutionStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	final, _ := repo.GetByID(context.Background(), execution.ID)
	assert.Contains(t, final.ErrorMessage, "agent failed")
}

func TestDispatcher_CancelInFlightExecution(t *testing.T) {
	repo := newMemoryExecutions()
	dispatcher, scheduler := newTestDispatcher(repo, nil, &stubAgent{block: true}, 4)
	defer scheduler.Shutdown()

	execution, err := dispatcher.ExecuteWorkflow(context.Background(), testWorkflow(), nil, "", "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return repo.status(t, execution.ID) == models.ExecutionStatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, dispatcher.CancelExecution(context.Background(), execution.ID))

	assert.Eventually(t, func() bool {
		return repo.status(t, execution.ID) == models.ExecutionStatusCancelled
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcher_SchedulerFullCancelsExecution(t *testing.T) {
	repo := newMemoryExecutions()
	dispatcher, scheduler := newTestDispatcher(repo, nil, &stubAgent{block: true}, 1)
	defer scheduler.Shutdown()

	first, err := dispatcher.ExecuteWorkflow(context.Background(), testWorkflow(), nil, "", "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return scheduler.Running(first.ID)
	}, 2*time.Second, 10*time.Millisecond)

	_, err = dispatcher.ExecuteWorkflow(context.Background(), testWorkflow(), nil, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchedulerFull)

	require.NoError(t, dispatcher.CancelExecution(context.Background(), first.ID))
}

func TestDispatcher_AutoModeDelegatesWholeGraph(t *testing.T) {
	repo := newMemoryExecutions()
	dispatcher, scheduler := newTestDispatcher(repo, nil, &stubAgent{response: "coordinated"}, 4)
	defer scheduler.Shutdown()

	workflow := testWorkflow()
	workflow.Settings = &models.OrchestrationSettings{Mode: models.OrchestrationModeAuto}

	execution, err := dispatcher.ExecuteWorkflow(context.Background(), workflow, nil, "", "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return repo.status(t, execution.ID) == models.ExecutionStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	final, _ := repo.GetByID(context.Background(), execution.ID)
	assert.Equal(t, "coordinated", final.OutputData)
}
