// Package logaction provides an executor that only logs what it is asked to do.
// It is the development default when no real executor is configured.
package logaction

import (
	"context"
	"log/slog"

	"github.com/dukex/flowpilot/pkg/models"
)

// Executor logs every descriptor and reports success.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates a logging executor.
func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("module", "log_action")}
}

func (e *Executor) Execute(ctx context.Context, descriptor models.ActionDescriptor) (*models.ActionResult, error) {
	e.logger.InfoContext(ctx, "Executing action",
		"type", descriptor.Type,
		"workflow_id", descriptor.WorkflowID,
		"task_id", descriptor.TaskID,
		"payload", descriptor.Payload)

	return &models.ActionResult{
		Success: true,
		Data:    map[string]any{"logged": true},
	}, nil
}
