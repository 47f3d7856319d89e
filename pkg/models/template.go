package models

import "time"

// Category groups templates by the kind of process they describe.
type Category string

const (
	CategoryScheduling     Category = "scheduling"
	CategorySupport        Category = "support"
	CategoryCommunication  Category = "communication"
	CategoryDataCollection Category = "data_collection"
)

// Categories lists the known categories in detection priority order.
var Categories = []Category{
	CategoryScheduling,
	CategorySupport,
	CategoryCommunication,
	CategoryDataCollection,
}

// BuiltinSchedulingTemplateID identifies the built-in default scheduling template.
const BuiltinSchedulingTemplateID = "builtin-scheduling"

// WorkflowTemplate is an immutable definition of a multi-step process.
// Structure holds the stored JSON text of the step list.
type WorkflowTemplate struct {
	ID                   string    `json:"id"                    validate:"required"`
	Name                 string    `json:"name"                  validate:"required,min=3"`
	Description          string    `json:"description"`
	Category             Category  `json:"category"              validate:"required,oneof=scheduling support communication data_collection"`
	Structure            string    `json:"structure"             validate:"required"`
	RequiredCapabilities []string  `json:"required_capabilities,omitempty"`
	SuccessRate          float64   `json:"success_rate"          validate:"min=0,max=100"`
	Active               bool      `json:"active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// IsBuiltin reports whether the template is the in-code default rather than a stored row.
func (t *WorkflowTemplate) IsBuiltin() bool {
	return t.ID == BuiltinSchedulingTemplateID
}

// StepKind is the closed set of step behaviours.
type StepKind string

const (
	StepKindGather   StepKind = "gather"   // Collects information from the user
	StepKindValidate StepKind = "validate" // Checks collected information
	StepKindConfirm  StepKind = "confirm"  // Asks the user to confirm details
	StepKindExecute  StepKind = "execute"  // Performs a side effect through an action executor
)

// Valid reports whether k is one of the known kinds.
func (k StepKind) Valid() bool {
	switch k {
	case StepKindGather, StepKindValidate, StepKindConfirm, StepKindExecute:
		return true
	default:
		return false
	}
}

// StepDefinition is one declared step of a template.
type StepDefinition struct {
	ID             string         `json:"id"`
	Kind           StepKind       `json:"kind"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	RequiredFields []string       `json:"required_fields,omitempty"`
	OptionalFields []string       `json:"optional_fields,omitempty"`
	DependsOn      []string       `json:"depends_on,omitempty"`
	Critical       bool           `json:"critical,omitempty"`
	RetryOnFailure bool           `json:"retry_on_failure,omitempty"`
	Extension      *StepExtension `json:"extension,omitempty"`
}

// StepExtension carries the optional, kind-specific step settings.
type StepExtension struct {
	SkipIfKnown bool                 `json:"skip_if_known,omitempty"`
	ActionType  string               `json:"action_type,omitempty"`
	FieldTypes  map[string]FieldType `json:"field_types,omitempty"`
	Options     map[string][]string  `json:"options,omitempty"`
}

// SkipIfKnown reports whether the step may be skipped regardless of its kind.
func (s StepDefinition) SkipIfKnown() bool {
	return s.Extension != nil && s.Extension.SkipIfKnown
}

// ActionType returns the executor action type for execute steps, defaulting to the step id.
func (s StepDefinition) ActionType() string {
	if s.Extension != nil && s.Extension.ActionType != "" {
		return s.Extension.ActionType
	}

	return s.ID
}
