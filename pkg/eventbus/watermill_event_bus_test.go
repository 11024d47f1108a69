package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/channels/gochannel"
	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_PublishDeliversToHandler(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		received []*events.ExecutionStarted
	)

	err := bus.Handle(events.ExecutionStartedEvent, func(_ context.Context, event any) error {
		started, ok := event.(*events.ExecutionStarted)
		require.True(t, ok)

		mu.Lock()
		received = append(received, started)
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	started := events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, "workflow-demo-1", "exec-1"),
		Strategy:  "sequential",
		Mode:      "manual",
	}

	require.NoError(t, bus.Publish(ctx, "workflow-demo-1", started))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "workflow-demo-1", received[0].WorkflowID)
	assert.Equal(t, "exec-1", received[0].ExecutionID)
	assert.Equal(t, "sequential", received[0].Strategy)
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	var handled bool

	err := bus.Handle(events.ExecutionFailedEvent, func(_ context.Context, _ any) error {
		handled = true

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	// completed has no registered handler; publish must not block or panic
	completed := events.ExecutionCompleted{
		BaseEvent: events.NewBaseEvent(events.ExecutionCompletedEvent, "workflow-demo-1", "exec-2"),
	}
	require.NoError(t, bus.Publish(ctx, "workflow-demo-1", completed))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, handled)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
