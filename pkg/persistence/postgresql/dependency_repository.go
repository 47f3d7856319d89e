package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/flowpilot/pkg/models"
)

// DependencyRepository handles dependency edge database operations.
type DependencyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDependencyRepository creates a new dependency repository.
func NewDependencyRepository(db *sql.DB, logger *slog.Logger) *DependencyRepository {
	return &DependencyRepository{db: db, logger: logger}
}

// Create inserts a dependency edge.
func (r *DependencyRepository) Create(ctx context.Context, dependency *models.WorkflowDependency) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_dependencies (id, workflow_id, task_id, depends_on_task_id, dependency_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		dependency.ID,
		dependency.WorkflowID,
		dependency.TaskID,
		dependency.DependsOnTaskID,
		dependency.Type,
		dependency.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dependency %s -> %s: %w", dependency.TaskID, dependency.DependsOnTaskID, err)
	}

	return nil
}

// ListByTask returns the edges leaving a task.
func (r *DependencyRepository) ListByTask(ctx context.Context, taskID string) ([]*models.WorkflowDependency, error) {
	return r.list(ctx, `WHERE task_id = $1`, taskID)
}

// ListByWorkflow returns every edge of a workflow.
func (r *DependencyRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowDependency, error) {
	return r.list(ctx, `WHERE workflow_id = $1`, workflowID)
}

func (r *DependencyRepository) list(ctx context.Context, where string, arg string) ([]*models.WorkflowDependency, error) {
	query := `SELECT id, workflow_id, task_id, depends_on_task_id, dependency_type, created_at
		FROM workflow_dependencies ` + where + ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	dependencies := make([]*models.WorkflowDependency, 0)

	for rows.Next() {
		var dependency models.WorkflowDependency

		err := rows.Scan(
			&dependency.ID,
			&dependency.WorkflowID,
			&dependency.TaskID,
			&dependency.DependsOnTaskID,
			&dependency.Type,
			&dependency.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}

		dependencies = append(dependencies, &dependency)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}

	return dependencies, nil
}
