// Package visibility mirrors workflow tasks into the user-facing conversation task list.
package visibility

import (
	"context"

	"github.com/dukex/flowpilot/pkg/eventbus"
	"github.com/dukex/flowpilot/pkg/events"
	"github.com/dukex/flowpilot/pkg/models"
)

// Mirror receives the user-facing copy of a task whenever it is created or changes status.
type Mirror interface {
	MirrorTask(ctx context.Context, task *models.ConversationTask) error
}

// NoopMirror discards every task.
type NoopMirror struct{}

func (NoopMirror) MirrorTask(context.Context, *models.ConversationTask) error {
	return nil
}

// EventMirror publishes mirrored tasks as ConversationTaskMirrored events keyed by conversation.
type EventMirror struct {
	publisher eventbus.EventPublisher
}

func NewEventMirror(publisher eventbus.EventPublisher) *EventMirror {
	return &EventMirror{publisher: publisher}
}

func (m *EventMirror) MirrorTask(ctx context.Context, task *models.ConversationTask) error {
	return m.publisher.Publish(ctx, task.ConversationID, events.ConversationTaskMirrored{
		BaseEvent: events.NewBaseEvent(events.ConversationTaskMirroredEvent, task.WorkflowID),
		Task:      *task,
	})
}

// Notifier publishes workflow progress events. A nil publisher disables it.
type Notifier struct {
	publisher eventbus.EventPublisher
}

func NewNotifier(publisher eventbus.EventPublisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// Notify publishes event keyed by workflow. It is a no-op without a publisher.
func (n *Notifier) Notify(ctx context.Context, workflowID string, event eventbus.Event) error {
	if n == nil || n.publisher == nil {
		return nil
	}

	return n.publisher.Publish(ctx, workflowID, event)
}
