// Package events defines the notifications published while workflows progress.
package events

import (
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic every engine event is published on.
const Topic = "flowpilot.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ConversationTaskMirroredEvent EventType = "conversation_task.mirrored"
	WorkflowGeneratedEvent        EventType = "workflow.generated"
	TaskCompletedEvent            EventType = "task.completed"
	WorkflowFinishedEvent         EventType = "workflow.finished"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ConversationTaskMirrored carries the user-facing copy of a task whenever it is created or changes status.
type ConversationTaskMirrored struct {
	BaseEvent

	Task models.ConversationTask `json:"task"`
}

func (c ConversationTaskMirrored) GetType() EventType {
	return ConversationTaskMirroredEvent
}

type WorkflowGenerated struct {
	BaseEvent

	TemplateName string   `json:"template_name"`
	TaskIDs      []string `json:"task_ids"`
	Skipped      []string `json:"skipped,omitempty"`
	Degraded     bool     `json:"degraded"`
}

func (w WorkflowGenerated) GetType() EventType {
	return WorkflowGeneratedEvent
}

type TaskCompleted struct {
	BaseEvent

	TaskID     string         `json:"task_id"`
	StepID     string         `json:"step_id"`
	Data       map[string]any `json:"data,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

func (t TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

type WorkflowFinished struct {
	BaseEvent

	Status models.WorkflowStatus `json:"status"`
	Reason string                `json:"reason,omitempty"`
}

func (w WorkflowFinished) GetType() EventType {
	return WorkflowFinishedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
