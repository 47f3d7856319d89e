// Package postgresql provides PostgreSQL persistence implementation for workflow orchestration.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // registers the postgres driver
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	templateRepo   *TemplateRepository
	workflowRepo   *WorkflowRepository
	taskRepo       *TaskRepository
	dependencyRepo *DependencyRepository
	executionRepo  *ExecutionRepository
	learningRepo   *LearningRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := sqlbase.NewMigrator(logger, database, migrations())

	postgres := &Persistence{
		db:             database,
		logger:         logger,
		templateRepo:   NewTemplateRepository(database, logger),
		workflowRepo:   NewWorkflowRepository(database, logger),
		taskRepo:       NewTaskRepository(database, logger),
		dependencyRepo: NewDependencyRepository(database, logger),
		executionRepo:  NewExecutionRepository(database, logger),
		learningRepo:   NewLearningRepository(database, logger),
	}

	err = migrator.Migrate(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) TemplateRepository() persistence.TemplateRepository     { return p.templateRepo }
func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository     { return p.workflowRepo }
func (p *Persistence) TaskRepository() persistence.TaskRepository             { return p.taskRepo }
func (p *Persistence) DependencyRepository() persistence.DependencyRepository { return p.dependencyRepo }
func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository   { return p.executionRepo }
func (p *Persistence) LearningRepository() persistence.LearningRepository     { return p.learningRepo }

type rowScanner interface {
	Scan(dest ...any) error
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func nullString(value *string) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}

	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}

	return &value.String
}
