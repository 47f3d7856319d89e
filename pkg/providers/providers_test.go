package providers

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecent(t *testing.T) {
	base := time.Now()
	entries := []models.MemoryEntry{
		{ID: "old", CreatedAt: base.Add(-2 * time.Hour)},
		{ID: "new", CreatedAt: base},
		{ID: "mid", CreatedAt: base.Add(-time.Hour)},
	}

	recent := Recent(entries, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].ID)
	assert.Equal(t, "mid", recent[1].ID)
	assert.Equal(t, "old", entries[0].ID, "input slice is left untouched")

	assert.Len(t, Recent(entries, 0), 3)
}

func TestStaticProviders(t *testing.T) {
	ctx := context.Background()

	memory := StaticMemory{"conv-1": {{ID: "a", Data: map[string]any{"email": "a@example.com"}}}}
	entries, err := memory.RecentMemories(ctx, "conv-1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = memory.RecentMemories(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	profiles := StaticProfiles{"user-1": {"email": "ana@example.com"}}
	profile, err := profiles.Profile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", profile["email"])

	profile["email"] = "changed"
	again, _ := profiles.Profile(ctx, "user-1")
	assert.Equal(t, "ana@example.com", again["email"])

	empty, err := profiles.Profile(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
