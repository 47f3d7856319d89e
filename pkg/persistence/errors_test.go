package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		taskErr := persistence.NewTaskError("GetByID", "task-456", persistence.ErrTaskNotFound)
		templateErr := persistence.NewTemplateError("GetByID", "tpl-1", persistence.ErrTemplateNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsTaskNotFound(taskErr))
		assert.True(t, persistence.IsTemplateNotFound(templateErr))
		assert.True(t, persistence.IsNotFound(taskErr))
		assert.False(t, persistence.IsWorkflowNotFound(taskErr))

		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
	})

	t.Run("status conflict is detected through wrapping", func(t *testing.T) {
		err := persistence.NewWorkflowError("UpdateStatus", "workflow-123", persistence.ErrStatusConflict)

		assert.True(t, persistence.IsStatusConflict(err))
		assert.False(t, persistence.IsNotFound(err))
	})

	t.Run("entity error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("UpdateStatus", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.Contains(t, err.Error(), "UpdateStatus")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "workflow not found")
	})
}
