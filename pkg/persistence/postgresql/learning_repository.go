package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
)

// LearningRepository handles learning pattern database operations.
type LearningRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLearningRepository creates a new learning repository.
func NewLearningRepository(db *sql.DB, logger *slog.Logger) *LearningRepository {
	return &LearningRepository{db: db, logger: logger}
}

const learningColumns = `
	id, template_id, pattern_type, pattern_key, pattern_data, confidence,
	occurrence_count, success_count, first_observed, last_observed
`

// Find returns the pattern with the given identity.
func (r *LearningRepository) Find(ctx context.Context, templateID, patternType, patternKey string) (*models.WorkflowLearning, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+learningColumns+`
		FROM workflow_learning
		WHERE template_id = $1 AND pattern_type = $2 AND pattern_key = $3
	`, templateID, patternType, patternKey)

	learning, err := scanLearning(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrLearningNotFound
		}

		return nil, fmt.Errorf("failed to find learning pattern: %w", err)
	}

	return learning, nil
}

// Save upserts a pattern keyed by (template, type, key).
func (r *LearningRepository) Save(ctx context.Context, learning *models.WorkflowLearning) error {
	dataJSON, err := json.Marshal(learning.PatternData)
	if err != nil {
		return fmt.Errorf("failed to marshal pattern data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_learning (`+learningColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (template_id, pattern_type, pattern_key) DO UPDATE SET
			pattern_data = EXCLUDED.pattern_data,
			confidence = EXCLUDED.confidence,
			occurrence_count = EXCLUDED.occurrence_count,
			success_count = EXCLUDED.success_count,
			last_observed = EXCLUDED.last_observed
	`,
		learning.ID,
		learning.TemplateID,
		learning.PatternType,
		learning.PatternKey,
		dataJSON,
		learning.Confidence,
		learning.OccurrenceCount,
		learning.SuccessCount,
		learning.FirstObserved,
		learning.LastObserved,
	)
	if err != nil {
		return fmt.Errorf("failed to save learning pattern: %w", err)
	}

	return nil
}

// ListByTemplate returns a template's patterns, most confident first.
func (r *LearningRepository) ListByTemplate(ctx context.Context, templateID string) ([]*models.WorkflowLearning, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+learningColumns+`
		FROM workflow_learning
		WHERE template_id = $1
		ORDER BY confidence DESC
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning patterns: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	patterns := make([]*models.WorkflowLearning, 0)

	for rows.Next() {
		learning, err := scanLearning(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan learning pattern: %w", err)
		}

		patterns = append(patterns, learning)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learning patterns: %w", err)
	}

	return patterns, nil
}

func scanLearning(scanner rowScanner) (*models.WorkflowLearning, error) {
	var (
		learning models.WorkflowLearning
		dataJSON []byte
	)

	err := scanner.Scan(
		&learning.ID,
		&learning.TemplateID,
		&learning.PatternType,
		&learning.PatternKey,
		&dataJSON,
		&learning.Confidence,
		&learning.OccurrenceCount,
		&learning.SuccessCount,
		&learning.FirstObserved,
		&learning.LastObserved,
	)
	if err != nil {
		return nil, err
	}

	learning.PatternData = make(map[string]any)

	if dataJSON != nil {
		if err := json.Unmarshal(dataJSON, &learning.PatternData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pattern data: %w", err)
		}
	}

	return &learning, nil
}
