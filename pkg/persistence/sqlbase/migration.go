// Package sqlbase holds the pieces shared by SQL-backed stores.
package sqlbase

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
)

// Migration is one forward-only schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator applies versioned migrations and records them in schema_migrations.
type Migrator struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations []Migration
}

// NewMigrator sorts migrations by version.
func NewMigrator(logger *slog.Logger, db *sql.DB, migrations []Migration) *Migrator {
	sorted := slices.SortedFunc(slices.Values(migrations), func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})

	return &Migrator{db: db, logger: logger, migrations: sorted}
}

// LatestVersion is the highest version the migrator knows about, 0 when it has none.
func (m *Migrator) LatestVersion() int {
	if len(m.migrations) == 0 {
		return 0
	}

	return m.migrations[len(m.migrations)-1].Version
}

// Migrate brings the schema up to LatestVersion. Each migration commits in its own
// transaction together with its schema_migrations row.
func (m *Migrator) Migrate(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int

	err = m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	logger := m.logger.With("from_version", current, "to_version", m.LatestVersion())
	logger.InfoContext(ctx, "Checking database schema")

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}

		err := m.apply(ctx, migration)
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "Applied migration", "version", migration.Version, "name", migration.Name)
	}

	return nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: failed to begin transaction: %w", migration.Version, err)
	}

	_, err = tx.ExecContext(ctx, migration.SQL)
	if err == nil {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", migration.Version, migration.Name)
	}

	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("migration %d (%s): %w", migration.Version, migration.Name, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("migration %d: failed to commit: %w", migration.Version, err)
	}

	return nil
}
