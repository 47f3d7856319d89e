package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id, template_id, template_name, category, conversation_id, user_id,
	status, context, created_at, updated_at, completed_at
`

// Create inserts a new workflow.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	contextJSON, err := json.Marshal(workflow.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow context: %w", err)
	}

	query := `INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		nullString(workflow.TemplateID),
		workflow.TemplateName,
		workflow.Category,
		workflow.ConversationID,
		workflow.UserID,
		workflow.Status,
		contextJSON,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.CompletedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Create", workflow.ID, err)
	}

	return nil
}

// GetByID returns a workflow by its ID.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// UpdateStatus performs a conditional status update.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, from, to models.WorkflowStatus) error {
	now := time.Now().UTC()

	var completedAt *time.Time
	if to.IsTerminal() {
		completedAt = &now
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workflows
		SET status = $3, updated_at = $4, completed_at = COALESCE($5, completed_at)
		WHERE id = $1 AND status = $2
	`, id, from, to, now, completedAt)
	if err != nil {
		return persistence.NewWorkflowError("UpdateStatus", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("UpdateStatus", id, err)
	}

	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}

		return persistence.NewWorkflowError("UpdateStatus", id, persistence.ErrStatusConflict)
	}

	return nil
}

// ListByTemplate returns the workflows generated from a template, newest first.
func (r *WorkflowRepository) ListByTemplate(ctx context.Context, templateID string) ([]*models.Workflow, error) {
	query, args := templateFilter(`SELECT `+workflowColumns+` FROM workflows`, templateID)

	rows, err := r.db.QueryContext(ctx, query+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// CountByTemplate counts the workflows ever run against a template.
func (r *WorkflowRepository) CountByTemplate(ctx context.Context, templateID string) (int, error) {
	query, args := templateFilter(`SELECT COUNT(*) FROM workflows`, templateID)

	var count int

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count workflows: %w", err)
	}

	return count, nil
}

func templateFilter(base, templateID string) (string, []any) {
	if templateID == "" {
		return base + ` WHERE template_id IS NULL`, nil
	}

	return base + ` WHERE template_id = $1`, []any{templateID}
}

func scanWorkflow(scanner rowScanner) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		templateID  sql.NullString
		userID      sql.NullString
		contextJSON []byte
	)

	err := scanner.Scan(
		&workflow.ID,
		&templateID,
		&workflow.TemplateName,
		&workflow.Category,
		&workflow.ConversationID,
		&userID,
		&workflow.Status,
		&contextJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.TemplateID = stringPtr(templateID)
	workflow.UserID = userID.String

	if contextJSON != nil {
		err := json.Unmarshal(contextJSON, &workflow.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow context: %w", err)
		}
	}

	return &workflow, nil
}
