package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/persistence/file"
	"github.com/dukex/flowpilot/pkg/persistence/postgresql"
)

// NewPersistence opens the store named by databaseURL. postgres:// and
// postgresql:// URLs select PostgreSQL; anything else is a directory for the
// file store, with or without a file:// prefix.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch provider {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
