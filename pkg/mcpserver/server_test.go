package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowpilot/pkg/engine"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/testutil"
	"github.com/dukex/flowpilot/pkg/workflow"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := testutil.NewFilePersistence(t)

	return NewServer(engine.New(store, testutil.Logger()), "test", testutil.Logger())
}

func callTool(t *testing.T, h handler, arguments map[string]any) *mcp.CallToolResult {
	t.Helper()

	request := mcp.CallToolRequest{}
	request.Params.Arguments = arguments

	result, err := h(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	return result
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	return content.Text
}

func decodeResult[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, result.IsError, text(t, result))

	var value T
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &value))

	return value
}

func TestServer_SchedulingTools(t *testing.T) {
	s := newTestServer(t)

	detected := decodeResult[map[string]any](t, callTool(t, s.handleDetect, map[string]any{
		"text": "could you book a call with the sales team?",
	}))
	assert.Equal(t, true, detected["detected"])

	generation := decodeResult[workflow.Generation](t, callTool(t, s.handleGenerate, map[string]any{
		"conversation_id": "conv-1",
		"existing_data":   map[string]any{"attendees": []any{"ana@example.com"}},
		"timezone":        "Europe/Lisbon",
	}))
	assert.Equal(t, []string{"gather_attendees"}, generation.Skipped)
	assert.Equal(t, "Europe/Lisbon", generation.Workflow.Context.Timezone)

	workflowID := generation.Workflow.ID

	task := decodeResult[models.WorkflowTask](t, callTool(t, s.handleNextTask, map[string]any{
		"workflow_id": workflowID,
		"claim":       true,
	}))
	assert.Equal(t, "gather_datetime", task.StepID)
	assert.Equal(t, models.TaskStatusActive, task.Status)

	missing := decodeResult[struct {
		Requirements []models.InfoRequirement `json:"requirements"`
		Prompts      []models.Prompt          `json:"prompts"`
	}](t, callTool(t, s.handleMissingInfo, map[string]any{
		"workflow_id": workflowID,
		"task_id":     task.ID,
	}))
	require.NotEmpty(t, missing.Requirements)
	assert.NotEmpty(t, missing.Prompts)

	validation := decodeResult[models.ValidationResult](t, callTool(t, s.handleValidateInfo, map[string]any{
		"value":       "2:30 PM",
		"requirement": map[string]any{"field": "startTime", "type": "time", "required": true},
	}))
	assert.True(t, validation.Valid)
	assert.Equal(t, "14:30", validation.NormalizedValue)

	completed := decodeResult[models.WorkflowTask](t, callTool(t, s.handleCompleteTask, map[string]any{
		"task_id": task.ID,
		"data":    map[string]any{"startTime": "14:30", "endTime": "15:00"},
	}))
	assert.Equal(t, models.TaskStatusCompleted, completed.Status)

	result := callTool(t, s.handleCancel, map[string]any{"workflow_id": workflowID, "reason": "done for now"})
	assert.False(t, result.IsError)

	state := decodeResult[engine.WorkflowState](t, callTool(t, s.handleGetWorkflow, map[string]any{"workflow_id": workflowID}))
	assert.Equal(t, models.WorkflowStatusCancelled, state.Workflow.Status)
}

func TestServer_ToolErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name      string
		handler   handler
		arguments map[string]any
	}{
		{"detect without text", s.handleDetect, map[string]any{}},
		{"generate without conversation", s.handleGenerate, map[string]any{}},
		{"generate from unknown template", s.handleGenerate, map[string]any{"conversation_id": "c", "template_id": "missing"}},
		{"unknown workflow", s.handleGetWorkflow, map[string]any{"workflow_id": "missing"}},
		{"fail without reason", s.handleFailTask, map[string]any{"task_id": "missing"}},
		{"outcome without success", s.handleRecordOutcome, map[string]any{"workflow_id": "missing"}},
		{"validate without requirement", s.handleValidateInfo, map[string]any{"value": "x"}},
		{"execute unknown task", s.handleExecuteTask, map[string]any{"task_id": "missing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, tt.handler, tt.arguments)
			assert.True(t, result.IsError)
		})
	}
}

func TestServer_NoRunnableTask(t *testing.T) {
	s := newTestServer(t)

	generation := decodeResult[workflow.Generation](t, callTool(t, s.handleGenerate, map[string]any{
		"conversation_id": "conv-1",
	}))

	arguments := map[string]any{"workflow_id": generation.Workflow.ID, "claim": true}

	task := decodeResult[models.WorkflowTask](t, callTool(t, s.handleNextTask, arguments))
	assert.Equal(t, "gather_attendees", task.StepID)

	result := callTool(t, s.handleNextTask, arguments)
	assert.False(t, result.IsError)
	assert.Equal(t, "No task is runnable right now.", text(t, result))
}
