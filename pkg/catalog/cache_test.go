package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedTemplates(t *testing.T) {
	ctx := context.Background()
	client := testutil.StartRedis(t)

	store := testutil.NewFilePersistence(t)
	repo := store.TemplateRepository()

	steps := []models.StepDefinition{testutil.GatherStep("ask", []string{"email"})}
	first := testutil.CreateTestTemplate(t, steps, testutil.WithSuccessRate(80))
	second := testutil.CreateTestTemplate(t, steps, testutil.WithSuccessRate(20))
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	cached := NewCachedTemplates(repo, client, time.Minute, testutil.Logger())

	templates, err := cached.ListActiveByCategory(ctx, models.CategoryScheduling)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, first.ID, templates[0].ID)

	exists, err := client.Exists(ctx, cacheKeyPrefix+string(models.CategoryScheduling)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	// Writes that bypass the cache stay invisible until invalidation.
	require.NoError(t, repo.UpdateSuccessRate(ctx, second.ID, 99))

	templates, err = cached.ListActiveByCategory(ctx, models.CategoryScheduling)
	require.NoError(t, err)
	assert.Equal(t, first.ID, templates[0].ID)

	require.NoError(t, cached.UpdateSuccessRate(ctx, second.ID, 99))

	templates, err = cached.ListActiveByCategory(ctx, models.CategoryScheduling)
	require.NoError(t, err)
	assert.Equal(t, second.ID, templates[0].ID)
}
