package visibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowpilot/pkg/channels/gochannel"
	"github.com/dukex/flowpilot/pkg/eventbus"
	"github.com/dukex/flowpilot/pkg/events"
	"github.com/dukex/flowpilot/pkg/mocks"
	"github.com/dukex/flowpilot/pkg/models"
)

func TestEventMirror_MirrorTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	defer func() { _ = bus.Close() }()

	received := make(chan models.ConversationTask, 1)
	require.NoError(t, bus.Handle(events.ConversationTaskMirroredEvent, func(_ context.Context, event any) error {
		received <- event.(*events.ConversationTaskMirrored).Task

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	task := &models.ConversationTask{
		ID:             "ct-1",
		WorkflowID:     "wf-1",
		ConversationID: "conv-1",
		TaskID:         "task-1",
		Title:          "Gather attendees",
		Status:         models.TaskStatusPending,
	}
	require.NoError(t, NewEventMirror(bus).MirrorTask(ctx, task))

	select {
	case mirrored := <-received:
		assert.Equal(t, "task-1", mirrored.TaskID)
		assert.Equal(t, models.TaskStatusPending, mirrored.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("mirrored task was not delivered")
	}
}

func TestNoopMirror(t *testing.T) {
	assert.NoError(t, NoopMirror{}.MirrorTask(context.Background(), &models.ConversationTask{}))
}

func TestNotifier_WithoutPublisher(t *testing.T) {
	var notifier *Notifier
	assert.NoError(t, notifier.Notify(context.Background(), "wf-1", events.WorkflowFinished{}))
	assert.NoError(t, NewNotifier(nil).Notify(context.Background(), "wf-1", events.WorkflowFinished{}))
}

func TestEventMirror_PublishFailure(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "conv-1", mock.AnythingOfType("events.ConversationTaskMirrored")).
		Return(errors.New("broker unavailable"))

	err := NewEventMirror(bus).MirrorTask(context.Background(), &models.ConversationTask{
		WorkflowID:     "wf-1",
		ConversationID: "conv-1",
	})
	require.Error(t, err)
	bus.AssertExpectations(t)
}

func TestNotifier_PublishesKeyedByWorkflow(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "wf-1", mock.Anything).Return(nil)

	require.NoError(t, NewNotifier(bus).Notify(context.Background(), "wf-1", events.WorkflowFinished{}))
	bus.AssertNumberOfCalls(t, "Publish", 1)
}
