package models

import "time"

// Execution log actions.
const (
	ActionWorkflowCreated   = "workflow_created"
	ActionTaskSkipped       = "task_skipped"
	ActionTaskActivated     = "task_activated"
	ActionTaskCompleted     = "task_completed"
	ActionTaskFailed        = "task_failed"
	ActionTaskRetried       = "task_retried"
	ActionActionExecuted    = "action_executed"
	ActionWorkflowCompleted = "workflow_completed"
	ActionWorkflowFailed    = "workflow_failed"
	ActionWorkflowCancelled = "workflow_cancelled"
)

// Execution log actors.
const (
	ActorSystem = "system"
	ActorUser   = "user"
)

// WorkflowExecution is an append-only audit log row.
type WorkflowExecution struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	TaskID     *string        `json:"task_id,omitempty"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	Input      map[string]any `json:"input,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Learning pattern types.
const (
	PatternSchedulingTimePreference = "scheduling_time_preference"
	PatternDataCollectionEfficiency = "data_collection_efficiency"
)

// WorkflowLearning is a scored behavioural pattern observed for a template.
// PatternKey is the canonical JSON encoding of PatternData and identifies the pattern.
type WorkflowLearning struct {
	ID              string         `json:"id"`
	TemplateID      string         `json:"template_id"`
	PatternType     string         `json:"pattern_type"`
	PatternKey      string         `json:"pattern_key"`
	PatternData     map[string]any `json:"pattern_data"`
	Confidence      float64        `json:"confidence"`
	OccurrenceCount int            `json:"occurrence_count"`
	SuccessCount    int            `json:"success_count"`
	FirstObserved   time.Time      `json:"first_observed"`
	LastObserved    time.Time      `json:"last_observed"`
}

// OptimizationType classifies an advisory suggestion.
type OptimizationType string

const (
	OptimizationRemoveStep     OptimizationType = "remove_step"
	OptimizationParallelize    OptimizationType = "parallelize"
	OptimizationAdjustBehavior OptimizationType = "adjust_behavior"
)

// Optimization is a read-only suggestion derived from history and learning data.
type Optimization struct {
	Type        OptimizationType `json:"type"`
	StepIDs     []string         `json:"step_ids,omitempty"`
	TaskIDs     []string         `json:"task_ids,omitempty"`
	PatternType string           `json:"pattern_type,omitempty"`
	Data        map[string]any   `json:"data,omitempty"`
	Reason      string           `json:"reason"`
	Confidence  float64          `json:"confidence"`
}

// ActionDescriptor describes a side effect an external executor performs.
type ActionDescriptor struct {
	Type           string         `json:"type"`
	Payload        map[string]any `json:"payload"`
	WorkflowID     string         `json:"workflow_id"`
	TaskID         string         `json:"task_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
}

// ActionResult is what an executor reports back.
type ActionResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Feedback is optional caller input attached to a workflow outcome.
type Feedback struct {
	Reason   string `json:"reason,omitempty"`
	Rating   int    `json:"rating,omitempty"   validate:"omitempty,min=1,max=5"`
	Comments string `json:"comments,omitempty"`
}
