package information

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukex/flowpilot/pkg/models"
)

func TestInferFieldType(t *testing.T) {
	tests := map[string]models.FieldType{
		"email":                models.FieldTypeEmail,
		"work_email":           models.FieldTypeEmail,
		"phone_number":         models.FieldTypePhone,
		"mobile":               models.FieldTypePhone,
		"timezone":             models.FieldTypeText,
		"meeting_date":         models.FieldTypeDate,
		"birthday":             models.FieldTypeDate,
		"startTime":            models.FieldTypeTime,
		"duration":             models.FieldTypeNumber,
		"attendee_count":       models.FieldTypeNumber,
		"is_recurring":         models.FieldTypeBoolean,
		"include_meeting_link": models.FieldTypeBoolean,
		"notifications":        models.FieldTypeBoolean,
		"attendees":            models.FieldTypeText,
	}

	for field, expected := range tests {
		t.Run(field, func(t *testing.T) {
			assert.Equal(t, expected, InferFieldType(field))
		})
	}
}

func TestRuleFor(t *testing.T) {
	step := models.StepDefinition{
		ID:             "gather_preferences",
		Kind:           models.StepKindGather,
		RequiredFields: []string{"priority", "duration", "email"},
		Extension: &models.StepExtension{
			FieldTypes: map[string]models.FieldType{"priority": models.FieldTypeSelect},
			Options:    map[string][]string{"priority": {"low", "medium", "high"}},
		},
	}

	assert.Equal(t, "select:low|medium|high", RuleFor(step, "priority"))
	assert.Equal(t, "number", RuleFor(step, "duration"))
	assert.Equal(t, "email", RuleFor(models.StepDefinition{}, "email"))

	fieldType, options := ParseRule("priority", RuleFor(step, "priority"))
	assert.Equal(t, models.FieldTypeSelect, fieldType)
	assert.Equal(t, []string{"low", "medium", "high"}, options)

	fieldType, options = ParseRule("startTime", "")
	assert.Equal(t, models.FieldTypeTime, fieldType)
	assert.Nil(t, options)
}

func TestNewRequirement_Constraints(t *testing.T) {
	assert.True(t, NewRequirement("meeting_date", "").Constraints.FutureOnly)
	assert.False(t, NewRequirement("birth_date", "").Constraints.FutureOnly)
	assert.True(t, NewRequirement("startTime", "").Constraints.BusinessHoursOnly)
	assert.True(t, NewRequirement("work_email", "").Constraints.BusinessEmailOnly)
	assert.False(t, NewRequirement("email", "").Constraints.BusinessEmailOnly)

	requirement := NewRequirement("attendees", "")
	assert.True(t, requirement.Required)
	assert.Equal(t, models.FieldTypeText, requirement.Type)
}

func TestFieldLabel(t *testing.T) {
	assert.Equal(t, "start time", FieldLabel("startTime"))
	assert.Equal(t, "meeting date", FieldLabel("meeting_date"))
	assert.Equal(t, "include meeting link", FieldLabel("include-meeting-link"))
	assert.Equal(t, "email", FieldLabel("email"))
}
