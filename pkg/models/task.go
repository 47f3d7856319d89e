package models

import "time"

// TaskStatus represents the state of one task node.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// WorkflowTask is one node of an instantiated workflow graph.
type WorkflowTask struct {
	ID              string            `json:"id"`
	WorkflowID      string            `json:"workflow_id"`
	ParentTaskID    *string           `json:"parent_task_id,omitempty"`
	StepID          string            `json:"step_id"`
	Kind            StepKind          `json:"kind"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Status          TaskStatus        `json:"status"`
	Prerequisites   []string          `json:"prerequisites,omitempty"`
	ValidationRules map[string]string `json:"validation_rules,omitempty"`
	DataCollected   map[string]any    `json:"data_collected,omitempty"`
	Critical        bool              `json:"critical"`
	RetryOnFailure  bool              `json:"retry_on_failure"`
	ActionType      string            `json:"action_type,omitempty"`
	Timezone        string            `json:"timezone,omitempty"`
	Language        string            `json:"language,omitempty"`
	Attempts        int               `json:"attempts"`
	CreatedAt       time.Time         `json:"created_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	DurationMS      *int64            `json:"duration_ms,omitempty"`
}

// IsOpen reports whether the task still needs work.
func (t *WorkflowTask) IsOpen() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusActive
}

// DependencyType classifies an edge between two tasks.
type DependencyType string

const (
	DependencyBlocks      DependencyType = "blocks" // The only type that gates scheduling
	DependencyInforms     DependencyType = "informs"
	DependencyOptional    DependencyType = "optional"
	DependencyConditional DependencyType = "conditional"
)

// WorkflowDependency is a directed edge: TaskID depends on DependsOnTaskID.
type WorkflowDependency struct {
	ID              string         `json:"id"`
	WorkflowID      string         `json:"workflow_id"`
	TaskID          string         `json:"task_id"`
	DependsOnTaskID string         `json:"depends_on_task_id"`
	Type            DependencyType `json:"type"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ConversationTask is the human-facing mirror of a workflow task.
type ConversationTask struct {
	ID             string     `json:"id"`
	WorkflowID     string     `json:"workflow_id"`
	ConversationID string     `json:"conversation_id"`
	TaskID         string     `json:"task_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         TaskStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}
