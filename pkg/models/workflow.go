// Package models defines the core domain models for conversational workflow orchestration.
package models

import (
	"slices"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusPlanning  WorkflowStatus = "planning"  // Tasks are being generated
	WorkflowStatusActive    WorkflowStatus = "active"    // Tasks can be resolved and completed
	WorkflowStatusCompleted WorkflowStatus = "completed" // Terminal, every task completed
	WorkflowStatusFailed    WorkflowStatus = "failed"    // Terminal, a critical task failed
	WorkflowStatusCancelled WorkflowStatus = "cancelled" // Terminal, abandoned on request
)

var workflowTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowStatusPlanning: {WorkflowStatusActive, WorkflowStatusFailed, WorkflowStatusCancelled},
	WorkflowStatusActive:   {WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled},
}

// IsTerminal reports whether no further transition is allowed from the status.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed || s == WorkflowStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a legal, one-directional move.
func (s WorkflowStatus) CanTransitionTo(next WorkflowStatus) bool {
	return slices.Contains(workflowTransitions[s], next)
}

// Workflow is a running instance of a template bound to one conversation.
type Workflow struct {
	ID             string          `json:"id"`
	TemplateID     *string         `json:"template_id,omitempty"` // nil when the built-in default template was used
	TemplateName   string          `json:"template_name"`
	Category       Category        `json:"category"`
	ConversationID string          `json:"conversation_id"`
	UserID         string          `json:"user_id,omitempty"`
	Status         WorkflowStatus  `json:"status"            validate:"required"`
	Context        WorkflowContext `json:"context"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// TemplateKey returns the identifier learning data is filed under.
// Workflows generated from the built-in template share BuiltinTemplateID.
func (w *Workflow) TemplateKey() string {
	if w.TemplateID == nil || *w.TemplateID == "" {
		return BuiltinSchedulingTemplateID
	}

	return *w.TemplateID
}

// WorkflowContext is the snapshot of what was known when the workflow was generated.
type WorkflowContext struct {
	ExistingData map[string]any `json:"existing_data,omitempty"`
	Memory       []MemoryEntry  `json:"memory,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Timezone     string         `json:"timezone,omitempty"`
	Language     string         `json:"language,omitempty"`
}

// MemoryEntryTypeUserInfo tags memory entries that describe the user.
const MemoryEntryTypeUserInfo = "user_info"

// MemoryEntry is one conversation memory record.
type MemoryEntry struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Tags      []string       `json:"tags,omitempty"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// HasTag reports whether the entry is typed or tagged with tag.
func (m MemoryEntry) HasTag(tag string) bool {
	return m.Type == tag || slices.Contains(m.Tags, tag)
}
