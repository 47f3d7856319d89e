package logaction

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowpilot/pkg/models"
)

func TestExecutor_Execute(t *testing.T) {
	var buf bytes.Buffer

	executor := NewExecutor(slog.New(slog.NewTextHandler(&buf, nil)))

	result, err := executor.Execute(context.Background(), models.ActionDescriptor{
		Type:       "calendar.check_availability",
		WorkflowID: "wf-1",
		TaskID:     "task-1",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, true, result.Data["logged"])
	assert.Contains(t, buf.String(), "calendar.check_availability")
	assert.Contains(t, buf.String(), "module=log_action")
}
