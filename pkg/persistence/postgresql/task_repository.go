package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/lib/pq"
)

// TaskRepository handles task-related database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `
	id, workflow_id, parent_task_id, step_id, kind, title, description, status,
	prerequisites, validation_rules, data_collected, critical, retry_on_failure,
	action_type, timezone, language, attempts, created_at, started_at, completed_at, duration_ms
`

// Create inserts a new task.
func (r *TaskRepository) Create(ctx context.Context, task *models.WorkflowTask) error {
	rulesJSON, dataJSON, err := marshalTaskMaps(task)
	if err != nil {
		return err
	}

	query := `INSERT INTO workflow_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.WorkflowID,
		nullString(task.ParentTaskID),
		task.StepID,
		task.Kind,
		task.Title,
		task.Description,
		task.Status,
		pq.Array(task.Prerequisites),
		rulesJSON,
		dataJSON,
		task.Critical,
		task.RetryOnFailure,
		task.ActionType,
		task.Timezone,
		task.Language,
		task.Attempts,
		task.CreatedAt,
		task.StartedAt,
		task.CompletedAt,
		task.DurationMS,
	)
	if err != nil {
		return persistence.NewTaskError("Create", task.ID, err)
	}

	return nil
}

// GetByID returns a task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTask, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM workflow_tasks WHERE id = $1`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTaskError("GetByID", id, persistence.ErrTaskNotFound)
		}

		return nil, persistence.NewTaskError("GetByID", id, err)
	}

	return task, nil
}

// Update replaces the mutable fields of a task.
func (r *TaskRepository) Update(ctx context.Context, task *models.WorkflowTask) error {
	rulesJSON, dataJSON, err := marshalTaskMaps(task)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_tasks SET
			status = $2,
			data_collected = $3,
			validation_rules = $4,
			attempts = $5,
			started_at = $6,
			completed_at = $7,
			duration_ms = $8
		WHERE id = $1
	`,
		task.ID,
		task.Status,
		dataJSON,
		rulesJSON,
		task.Attempts,
		task.StartedAt,
		task.CompletedAt,
		task.DurationMS,
	)
	if err != nil {
		return persistence.NewTaskError("Update", task.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewTaskError("Update", task.ID, err)
	}

	if affected == 0 {
		return persistence.NewTaskError("Update", task.ID, persistence.ErrTaskNotFound)
	}

	return nil
}

// ListByWorkflow returns the tasks of a workflow in creation order, optionally filtered by status.
func (r *TaskRepository) ListByWorkflow(ctx context.Context, workflowID string, statuses ...models.TaskStatus) ([]*models.WorkflowTask, error) {
	var query strings.Builder

	query.WriteString(`SELECT ` + taskColumns + ` FROM workflow_tasks WHERE workflow_id = $1`)

	args := []any{workflowID}

	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}

		query.WriteString(` AND status = ANY($2)`)

		args = append(args, pq.Array(values))
	}

	query.WriteString(` ORDER BY created_at ASC, seq ASC`)

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	tasks := make([]*models.WorkflowTask, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// TransitionStatus moves a task between statuses only if the stored status matches from.
// Entering active stamps started_at once.
func (r *TaskRepository) TransitionStatus(ctx context.Context, id string, from, to models.TaskStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_tasks
		SET status = $3,
			started_at = CASE WHEN $4 THEN COALESCE(started_at, NOW()) ELSE started_at END
		WHERE id = $1 AND status = $2
	`, id, from, to, to == models.TaskStatusActive)
	if err != nil {
		return false, persistence.NewTaskError("TransitionStatus", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewTaskError("TransitionStatus", id, err)
	}

	return affected == 1, nil
}

func marshalTaskMaps(task *models.WorkflowTask) ([]byte, []byte, error) {
	rules := task.ValidationRules
	if rules == nil {
		rules = map[string]string{}
	}

	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal validation rules: %w", err)
	}

	data := task.DataCollected
	if data == nil {
		data = map[string]any{}
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal collected data: %w", err)
	}

	return rulesJSON, dataJSON, nil
}

func scanTask(scanner rowScanner) (*models.WorkflowTask, error) {
	var (
		task                models.WorkflowTask
		parentTaskID        sql.NullString
		rulesJSON, dataJSON []byte
	)

	err := scanner.Scan(
		&task.ID,
		&task.WorkflowID,
		&parentTaskID,
		&task.StepID,
		&task.Kind,
		&task.Title,
		&task.Description,
		&task.Status,
		pq.Array(&task.Prerequisites),
		&rulesJSON,
		&dataJSON,
		&task.Critical,
		&task.RetryOnFailure,
		&task.ActionType,
		&task.Timezone,
		&task.Language,
		&task.Attempts,
		&task.CreatedAt,
		&task.StartedAt,
		&task.CompletedAt,
		&task.DurationMS,
	)
	if err != nil {
		return nil, err
	}

	task.ParentTaskID = stringPtr(parentTaskID)
	task.ValidationRules = make(map[string]string)
	task.DataCollected = make(map[string]any)

	if rulesJSON != nil {
		if err := json.Unmarshal(rulesJSON, &task.ValidationRules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal validation rules: %w", err)
		}
	}

	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &task.DataCollected); err != nil {
			return nil, fmt.Errorf("failed to unmarshal collected data: %w", err)
		}
	}

	return &task, nil
}
