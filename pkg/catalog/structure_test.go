package catalog

import (
	"testing"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructure(t *testing.T) {
	tests := []struct {
		name      string
		structure string
		wantSteps int
		wantErr   string
	}{
		{
			name:      "valid chain",
			structure: `[{"id":"a","kind":"gather","title":"A","required_fields":["email"]},{"id":"b","kind":"execute","title":"B","depends_on":["a"]}]`,
			wantSteps: 2,
		},
		{
			name:      "empty list",
			structure: `[]`,
			wantSteps: 0,
		},
		{
			name:      "not json",
			structure: `schedule a meeting`,
			wantErr:   "not valid JSON",
		},
		{
			name:      "object instead of list",
			structure: `{"id":"a"}`,
			wantErr:   "invalid template structure",
		},
		{
			name:      "unknown kind",
			structure: `[{"id":"a","kind":"notify","title":"A"}]`,
			wantErr:   "invalid template structure",
		},
		{
			name:      "unknown field type in extension",
			structure: `[{"id":"a","kind":"gather","title":"A","extension":{"field_types":{"x":"color"}}}]`,
			wantErr:   "invalid template structure",
		},
		{
			name:      "duplicate id",
			structure: `[{"id":"a","kind":"gather","title":"A"},{"id":"a","kind":"gather","title":"A"}]`,
			wantErr:   "duplicate step id",
		},
		{
			name:      "forward dependency",
			structure: `[{"id":"a","kind":"gather","title":"A","depends_on":["b"]},{"id":"b","kind":"gather","title":"B"}]`,
			wantErr:   "unknown or later step",
		},
		{
			name:      "self dependency",
			structure: `[{"id":"a","kind":"gather","title":"A","depends_on":["a"]}]`,
			wantErr:   "depends on itself",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := ParseStructure(tt.structure)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTemplateStructure)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Len(t, steps, tt.wantSteps)
		})
	}
}

func TestParseStructure_Extension(t *testing.T) {
	steps, err := ParseStructure(`[{"id":"pick","kind":"gather","title":"Pick","required_fields":["room"],
		"extension":{"skip_if_known":true,"field_types":{"room":"select"},"options":{"room":["A","B"]}}}]`)
	require.NoError(t, err)
	require.Len(t, steps, 1)

	step := steps[0]
	assert.True(t, step.SkipIfKnown())
	assert.Equal(t, models.FieldTypeSelect, step.Extension.FieldTypes["room"])
	assert.Equal(t, []string{"A", "B"}, step.Extension.Options["room"])
}

func TestDefaultSchedulingTemplate(t *testing.T) {
	template := DefaultSchedulingTemplate()

	assert.True(t, template.IsBuiltin())
	assert.Equal(t, models.CategoryScheduling, template.Category)

	steps, err := ParseStructure(template.Structure)
	require.NoError(t, err)
	require.Len(t, steps, 5)

	ids := make([]string, len(steps))
	for i, step := range steps {
		ids[i] = step.ID
	}

	assert.Equal(t, []string{
		"gather_attendees", "gather_datetime", "check_availability", "confirm_details", "book_meeting",
	}, ids)

	// Single chain: every step after the first blocks on its predecessor.
	for i := 1; i < len(steps); i++ {
		assert.Equal(t, []string{steps[i-1].ID}, steps[i].DependsOn)
	}

	assert.True(t, steps[4].Critical)
	assert.True(t, steps[4].RetryOnFailure)

	// Every call hands out an independent copy.
	DefaultSchedulingTemplate().Name = "changed"
	assert.Equal(t, "Schedule Meeting", DefaultSchedulingTemplate().Name)
}
