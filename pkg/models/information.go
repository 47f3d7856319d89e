package models

// FieldType is the semantic type of a requested field.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeEmail       FieldType = "email"
	FieldTypePhone       FieldType = "phone"
	FieldTypeDate        FieldType = "date"
	FieldTypeTime        FieldType = "time"
	FieldTypeNumber      FieldType = "number"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiSelect FieldType = "multiselect"
)

// Provenance names where a value came from.
type Provenance string

const (
	ProvenanceUser      Provenance = "user"
	ProvenanceMemory    Provenance = "memory"
	ProvenanceProfile   Provenance = "profile"
	ProvenanceAPI       Provenance = "api"
	ProvenanceInference Provenance = "inference"
)

// Constraints narrow what a valid value looks like.
type Constraints struct {
	FutureOnly        bool `json:"future_only,omitempty"`
	BusinessDaysOnly  bool `json:"business_days_only,omitempty"`
	BusinessHoursOnly bool `json:"business_hours_only,omitempty"`
	BusinessEmailOnly bool `json:"business_email_only,omitempty"`
}

// InfoRequirement is one field still needed before a task can proceed.
type InfoRequirement struct {
	Field       string      `json:"field"`
	Type        FieldType   `json:"type"`
	Required    bool        `json:"required"`
	Validation  string      `json:"validation,omitempty"` // optional regular expression
	Value       any         `json:"value,omitempty"`
	Provenance  Provenance  `json:"provenance,omitempty"`
	Confidence  float64     `json:"confidence"`
	Options     []string    `json:"options,omitempty"`
	Constraints Constraints `json:"constraints"`
}

// ValidationResult is the structured outcome of validating one value.
type ValidationResult struct {
	Valid           bool     `json:"valid"`
	NormalizedValue any      `json:"normalized_value,omitempty"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	Suggestions     []string `json:"suggestions"`
}

// Tone selects how a prompt is phrased.
type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneUrgent       Tone = "urgent"
)

// Prompt is a conversational request for one or more fields.
type Prompt struct {
	Fields        []string `json:"fields"`
	Question      string   `json:"question"`
	FollowUp      string   `json:"follow_up"`
	Clarification string   `json:"clarification"`
	Examples      []string `json:"examples,omitempty"`
	Tone          Tone     `json:"tone"`
}

// Strategy is how a workflow proceeds when data is partial.
type Strategy string

const (
	StrategyDefault Strategy = "default"
	StrategyAsk     Strategy = "ask"
	StrategyWait    Strategy = "wait"
	StrategyInfer   Strategy = "infer"
	StrategyProceed Strategy = "proceed"
)
