package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowpilot/pkg/channels/gochannel"
	"github.com/dukex/flowpilot/pkg/events"
	"github.com/dukex/flowpilot/pkg/models"
)

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	defer func() { _ = bus.Close() }()

	received := make(chan *events.WorkflowFinished, 1)

	require.NoError(t, bus.Handle(events.WorkflowFinishedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowFinished)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// Events without a handler are acknowledged and dropped.
	require.NoError(t, bus.Publish(ctx, "wf-1", events.TaskCompleted{
		BaseEvent: events.NewBaseEvent(events.TaskCompletedEvent, "wf-1"),
		TaskID:    "task-1",
	}))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.WorkflowFinished{
		BaseEvent: events.NewBaseEvent(events.WorkflowFinishedEvent, "wf-1"),
		Status:    models.WorkflowStatusCompleted,
	}))

	select {
	case event := <-received:
		assert.Equal(t, "wf-1", event.WorkflowID)
		assert.Equal(t, models.WorkflowStatusCompleted, event.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
