package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/lib/pq"
)

// TemplateRepository handles template catalog database operations.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

const templateColumns = `
	id, name, description, category, structure, required_capabilities,
	success_rate, active, created_at, updated_at
`

// Save inserts or replaces a template.
func (r *TemplateRepository) Save(ctx context.Context, template *models.WorkflowTemplate) error {
	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}

	template.UpdatedAt = now

	query := `
		INSERT INTO workflow_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			structure = EXCLUDED.structure,
			required_capabilities = EXCLUDED.required_capabilities,
			success_rate = EXCLUDED.success_rate,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		template.ID,
		template.Name,
		template.Description,
		template.Category,
		template.Structure,
		pq.Array(template.RequiredCapabilities),
		template.SuccessRate,
		template.Active,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		return persistence.NewTemplateError("Save", template.ID, err)
	}

	return nil
}

// GetByID returns a template by its ID.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM workflow_templates WHERE id = $1`, id)

	template, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTemplateError("GetByID", id, persistence.ErrTemplateNotFound)
		}

		return nil, persistence.NewTemplateError("GetByID", id, err)
	}

	return template, nil
}

// ListActiveByCategory returns active templates of a category, best success rate first.
func (r *TemplateRepository) ListActiveByCategory(ctx context.Context, category models.Category) ([]*models.WorkflowTemplate, error) {
	query := `SELECT ` + templateColumns + `
		FROM workflow_templates
		WHERE category = $1 AND active = true
		ORDER BY success_rate DESC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	templates := make([]*models.WorkflowTemplate, 0)

	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}

		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// UpdateSuccessRate stores a new rolling success rate.
func (r *TemplateRepository) UpdateSuccessRate(ctx context.Context, id string, rate float64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE workflow_templates SET success_rate = $2, updated_at = $3 WHERE id = $1`,
		id, rate, time.Now().UTC(),
	)
	if err != nil {
		return persistence.NewTemplateError("UpdateSuccessRate", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewTemplateError("UpdateSuccessRate", id, err)
	}

	if affected == 0 {
		return persistence.NewTemplateError("UpdateSuccessRate", id, persistence.ErrTemplateNotFound)
	}

	return nil
}

func scanTemplate(scanner rowScanner) (*models.WorkflowTemplate, error) {
	var template models.WorkflowTemplate

	err := scanner.Scan(
		&template.ID,
		&template.Name,
		&template.Description,
		&template.Category,
		&template.Structure,
		pq.Array(&template.RequiredCapabilities),
		&template.SuccessRate,
		&template.Active,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &template, nil
}
