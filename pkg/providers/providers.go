// Package providers defines the read-only memory and profile lookups the
// information orchestrator consults, with in-memory implementations.
package providers

import (
	"context"
	"maps"
	"slices"

	"github.com/dukex/flowpilot/pkg/models"
)

// MemoryProvider returns the most recent memory entries of a conversation, newest first.
type MemoryProvider interface {
	RecentMemories(ctx context.Context, conversationID string, limit int) ([]models.MemoryEntry, error)
}

// ProfileProvider returns the stored profile attributes of a user.
type ProfileProvider interface {
	Profile(ctx context.Context, userID string) (map[string]any, error)
}

// StaticMemory serves memory entries from a map keyed by conversation id.
type StaticMemory map[string][]models.MemoryEntry

func (s StaticMemory) RecentMemories(_ context.Context, conversationID string, limit int) ([]models.MemoryEntry, error) {
	return Recent(s[conversationID], limit), nil
}

// StaticProfiles serves profiles from a map keyed by user id.
type StaticProfiles map[string]map[string]any

func (s StaticProfiles) Profile(_ context.Context, userID string) (map[string]any, error) {
	profile, ok := s[userID]
	if !ok {
		return map[string]any{}, nil
	}

	return maps.Clone(profile), nil
}

// Recent returns up to limit entries ordered newest first.
func Recent(entries []models.MemoryEntry, limit int) []models.MemoryEntry {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b models.MemoryEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	return sorted
}
