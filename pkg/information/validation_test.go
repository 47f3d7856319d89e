package information

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowpilot/pkg/models"
)

// Wednesday.
var fixedNow = time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return NewValidator(func() time.Time { return fixedNow })
}

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name        string
		value       any
		requirement models.InfoRequirement
		valid       bool
		normalized  any
		warnings    int
		suggestion  string
	}{
		{
			name:        "email is trimmed and lowered",
			value:       "JOHN@EXAMPLE.COM ",
			requirement: NewRequirement("email", ""),
			valid:       true,
			normalized:  "john@example.com",
		},
		{
			name:        "email domain typo",
			value:       "jane@gmial.com",
			requirement: NewRequirement("email", ""),
			valid:       true,
			normalized:  "jane@gmial.com",
			suggestion:  "Did you mean jane@gmail.com?",
		},
		{
			name:        "email syntax",
			value:       "not-an-email",
			requirement: NewRequirement("email", ""),
		},
		{
			name:        "personal address for a work email",
			value:       "jane@gmail.com",
			requirement: NewRequirement("work_email", ""),
			valid:       true,
			normalized:  "jane@gmail.com",
			warnings:    1,
		},
		{
			name:        "phone keeps digits",
			value:       "+1 (555) 123-4567",
			requirement: NewRequirement("phone", ""),
			valid:       true,
			normalized:  "15551234567",
		},
		{
			name:        "phone too short",
			value:       "12-34",
			requirement: NewRequirement("phone", ""),
		},
		{
			name:        "phone with letters",
			value:       "555-CALL-NOW",
			requirement: NewRequirement("phone", ""),
		},
		{
			name:        "future date",
			value:       "March 14, 2025",
			requirement: NewRequirement("meeting_date", ""),
			valid:       true,
			normalized:  "2025-03-14",
			suggestion:  "That is a Friday",
		},
		{
			name:        "relative date",
			value:       "Tomorrow",
			requirement: NewRequirement("meeting_date", ""),
			valid:       true,
			normalized:  "2025-03-13",
		},
		{
			name:        "past date",
			value:       "2025-03-01",
			requirement: NewRequirement("meeting_date", ""),
		},
		{
			name:        "past birth date",
			value:       "1990-05-20",
			requirement: NewRequirement("birth_date", ""),
			valid:       true,
			normalized:  "1990-05-20",
		},
		{
			name:  "weekend on a business day field",
			value: "2025-03-15",
			requirement: models.InfoRequirement{
				Field: "meeting_date", Type: models.FieldTypeDate, Required: true,
				Constraints: models.Constraints{FutureOnly: true, BusinessDaysOnly: true},
			},
			valid:      true,
			normalized: "2025-03-15",
			warnings:   1,
		},
		{
			name:        "holiday",
			value:       "12/25/2025",
			requirement: NewRequirement("meeting_date", ""),
			valid:       true,
			normalized:  "2025-12-25",
			warnings:    1,
		},
		{
			name:        "unparseable date",
			value:       "someday soon",
			requirement: NewRequirement("meeting_date", ""),
		},
		{
			name:        "twelve hour time",
			value:       "2:30 PM",
			requirement: NewRequirement("startTime", ""),
			valid:       true,
			normalized:  "14:30",
		},
		{
			name:        "time is zero padded",
			value:       "9:05",
			requirement: NewRequirement("startTime", ""),
			valid:       true,
			normalized:  "09:05",
		},
		{
			name:        "early time",
			value:       "7am",
			requirement: NewRequirement("startTime", ""),
			valid:       true,
			normalized:  "07:00",
			warnings:    1,
		},
		{
			name:        "invalid time",
			value:       "25:00",
			requirement: NewRequirement("startTime", ""),
		},
		{
			name:        "bare hour",
			value:       "14",
			requirement: NewRequirement("startTime", ""),
		},
		{
			name:        "number with separators",
			value:       "1,500",
			requirement: NewRequirement("amount", ""),
			valid:       true,
			normalized:  1500.0,
		},
		{
			name:        "integer number",
			value:       30,
			requirement: NewRequirement("duration", ""),
			valid:       true,
			normalized:  30.0,
		},
		{
			name:        "not a number",
			value:       "thirty",
			requirement: NewRequirement("duration", ""),
		},
		{
			name:        "boolean words",
			value:       "Yes",
			requirement: NewRequirement("notifications", ""),
			valid:       true,
			normalized:  true,
		},
		{
			name:        "boolean nonsense",
			value:       "perhaps",
			requirement: NewRequirement("notifications", ""),
		},
		{
			name:        "select matches case-insensitively",
			value:       "medium",
			requirement: NewRequirement("priority", "select:Low|Medium|High"),
			valid:       true,
			normalized:  "Medium",
		},
		{
			name:        "select typo",
			value:       "hgih",
			requirement: NewRequirement("priority", "select:Low|Medium|High"),
			suggestion:  "Did you mean High?",
		},
		{
			name:        "multiselect",
			value:       "email, sms, email",
			requirement: NewRequirement("channels", "multiselect:Email|SMS|Push"),
			valid:       true,
			normalized:  []string{"Email", "SMS"},
		},
		{
			name:        "multiselect unknown choice",
			value:       []any{"Email", "fax"},
			requirement: NewRequirement("channels", "multiselect:Email|SMS|Push"),
		},
		{
			name:        "required text missing",
			value:       "  ",
			requirement: NewRequirement("attendees", ""),
		},
		{
			name:        "optional text missing",
			value:       nil,
			requirement: models.InfoRequirement{Field: "notes", Type: models.FieldTypeText},
			valid:       true,
		},
		{
			name:        "regular expression rule",
			value:       "ABC-123",
			requirement: models.InfoRequirement{Field: "ticket", Type: models.FieldTypeText, Required: true, Validation: `^[A-Z]+-\d+$`},
			valid:       true,
			normalized:  "ABC-123",
		},
		{
			name:        "regular expression mismatch",
			value:       "abc",
			requirement: models.InfoRequirement{Field: "ticket", Type: models.FieldTypeText, Required: true, Validation: `^[A-Z]+-\d+$`},
		},
	}

	validator := newTestValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validator.Validate(tt.value, tt.requirement)

			assert.Equal(t, tt.valid, result.Valid, "errors: %v", result.Errors)
			assert.NotNil(t, result.Errors)
			assert.NotNil(t, result.Warnings)
			assert.NotNil(t, result.Suggestions)

			if !tt.valid {
				assert.NotEmpty(t, result.Errors)
				assert.Nil(t, result.NormalizedValue)
			} else {
				assert.Empty(t, result.Errors)
				assert.Equal(t, tt.normalized, result.NormalizedValue)
			}

			if tt.warnings > 0 {
				assert.Len(t, result.Warnings, tt.warnings)
			}

			if tt.suggestion != "" {
				assert.Contains(t, result.Suggestions, tt.suggestion)
			}
		})
	}
}

func TestValidator_Idempotent(t *testing.T) {
	validator := newTestValidator()

	inputs := []struct {
		value       any
		requirement models.InfoRequirement
	}{
		{"JOHN@EXAMPLE.COM ", NewRequirement("email", "")},
		{"+44 20 7946 0958", NewRequirement("phone", "")},
		{"March 20, 2025", NewRequirement("meeting_date", "")},
		{"3:15pm", NewRequirement("startTime", "")},
		{"45", NewRequirement("duration", "")},
		{"no", NewRequirement("notifications", "")},
		{"HIGH", NewRequirement("priority", "select:Low|Medium|High")},
		{"push,sms", NewRequirement("channels", "multiselect:Email|SMS|Push")},
		{" Alice, Bob ", NewRequirement("attendees", "")},
	}

	for _, input := range inputs {
		first := validator.Validate(input.value, input.requirement)
		require.True(t, first.Valid, "%v: %v", input.value, first.Errors)

		second := validator.Validate(first.NormalizedValue, input.requirement)
		assert.True(t, second.Valid)
		assert.Empty(t, second.Errors)
		assert.Equal(t, first.NormalizedValue, second.NormalizedValue)
	}
}
