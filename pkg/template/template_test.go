package template

import (
	"testing"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":  "John",
		"age":   30,
		"isNew": true,
	}

	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "John", result)

	result, err = Render("{{ .isNew }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Numbers always come back as float64.
	result, err = Render("{{ .age }}", data)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result)
}

func TestRender_ObjectConstruction(t *testing.T) {
	data := map[string]any{
		"attendees": []any{"ana@example.com", "bo@example.com"},
		"slot":      map[string]any{"start": "2026-10-16T09:00:00Z"},
	}

	result, err := Render(`{
		"start": "{{ .slot.start }}",
		"count": {{ len .attendees }}
	}`, data)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2026-10-16T09:00:00Z", resultMap["start"])
	assert.Equal(t, 2.0, resultMap["count"])
}

func TestRender_ErrorHandling(t *testing.T) {
	data := map[string]any{"test": "value"}

	_, err := Render("{ invalid..expression }}", data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse json")

	_, err = Render("{{ nonexistent.field }}", data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "function \"nonexistent\" not defined")
}

func TestRenderString_Placeholders(t *testing.T) {
	text, err := RenderString(`What {{ or .item_type "date" }} works for {{ or .purpose "this" }}?`,
		map[string]any{"purpose": "the kickoff"})
	require.NoError(t, err)
	assert.Equal(t, "What date works for the kickoff?", text)

	text, err = RenderString(`{{ title .name }} / {{ join ", " .fields }}`,
		map[string]any{"name": "email", "fields": []string{"date", "time"}})
	require.NoError(t, err)
	assert.Equal(t, "Email / date, time", text)

	// Numeric-looking output stays text.
	text, err = RenderString("{{ .n }}", map[string]any{"n": 42})
	require.NoError(t, err)
	assert.Equal(t, "42", text)
}

func TestRenderWithDescriptor(t *testing.T) {
	t.Setenv("CALENDAR_HOST", "calendar.internal")

	descriptor := &models.ActionDescriptor{
		Type:       "calendar.book_meeting",
		Payload:    map[string]any{"startTime": "09:00"},
		WorkflowID: "wf-1",
		TaskID:     "task-1",
	}

	result, err := RenderWithDescriptor("https://{{ .env.CALENDAR_HOST }}/workflows/{{ .workflow_id }}/{{ .payload.startTime }}", descriptor)
	require.NoError(t, err)
	assert.Equal(t, "https://calendar.internal/workflows/wf-1/09:00", result)
}
