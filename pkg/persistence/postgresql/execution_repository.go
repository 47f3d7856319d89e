package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/flowpilot/pkg/models"
)

// ExecutionRepository handles the append-only execution log.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Append writes one execution log row.
func (r *ExecutionRepository) Append(ctx context.Context, execution *models.WorkflowExecution) error {
	input := execution.Input
	if input == nil {
		input = map[string]any{}
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal execution input: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (id, workflow_id, task_id, action, actor, input_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		execution.ID,
		execution.WorkflowID,
		nullString(execution.TaskID),
		execution.Action,
		execution.Actor,
		inputJSON,
		execution.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append execution %s: %w", execution.Action, err)
	}

	return nil
}

// ListByWorkflow returns the log of a workflow in chronological order.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_id, task_id, action, actor, input_data, created_at
		FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY created_at ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		var (
			execution models.WorkflowExecution
			taskID    sql.NullString
			inputJSON []byte
		)

		err := rows.Scan(
			&execution.ID,
			&execution.WorkflowID,
			&taskID,
			&execution.Action,
			&execution.Actor,
			&inputJSON,
			&execution.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		execution.TaskID = stringPtr(taskID)
		execution.Input = make(map[string]any)

		if inputJSON != nil {
			if err := json.Unmarshal(inputJSON, &execution.Input); err != nil {
				return nil, fmt.Errorf("failed to unmarshal execution input: %w", err)
			}
		}

		executions = append(executions, &execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}
