// Package web provides the HTTP handlers of the flowpilot API.
package web

import (
	"github.com/dukex/flowpilot/pkg/information"
	"github.com/dukex/flowpilot/pkg/models"
)

// DetectRequest is an utterance to check for a workflow need.
type DetectRequest struct {
	Text         string         `json:"text"          validate:"required"`
	Capabilities []string       `json:"capabilities"`
	ExistingData map[string]any `json:"existing_data"`
}

// DetectResponse carries the matched template, if any.
type DetectResponse struct {
	Detected bool                     `json:"detected"`
	Template *models.WorkflowTemplate `json:"template,omitempty"`
}

// GenerateWorkflowRequest instantiates a template for a conversation. An empty
// TemplateID selects the built-in scheduling template.
type GenerateWorkflowRequest struct {
	TemplateID     string                 `json:"template_id"`
	ConversationID string                 `json:"conversation_id" validate:"required"`
	UserID         string                 `json:"user_id"`
	Context        models.WorkflowContext `json:"context"`
}

// CompleteTaskRequest carries the data gathered or produced by a task.
type CompleteTaskRequest struct {
	Data map[string]any `json:"data"`
}

// FailTaskRequest records why an attempt failed.
type FailTaskRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CancelWorkflowRequest records why a workflow was abandoned.
type CancelWorkflowRequest struct {
	Reason string `json:"reason"`
}

// StrategyRequest is the data collected so far.
type StrategyRequest struct {
	information.StrategyOptions

	Collected map[string]any `json:"collected"`
}

// OutcomeRequest reports how a workflow ended.
type OutcomeRequest struct {
	Success  *bool            `json:"success"  validate:"required"`
	Feedback *models.Feedback `json:"feedback"`
}

// PromptsRequest asks for questions covering requirements.
type PromptsRequest struct {
	Requirements []models.InfoRequirement  `json:"requirements" validate:"required,min=1"`
	Context      information.PromptContext `json:"context"`
}

// ValidateRequest checks one answer against its requirement.
type ValidateRequest struct {
	Value       any                    `json:"value"`
	Requirement models.InfoRequirement `json:"requirement"`
}
