package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/testutil"
)

func named(name string) Executor {
	return ExecutorFunc(func(_ context.Context, descriptor models.ActionDescriptor) (*models.ActionResult, error) {
		return &models.ActionResult{Success: true, Data: map[string]any{"by": name, "type": descriptor.Type}}, nil
	})
}

func TestRegistry_Routing(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(testutil.Logger())
	registry.Register("calendar.book_meeting", named("booker"))
	registry.Register("calendar", named("calendar"))

	tests := []struct {
		actionType string
		expected   string
	}{
		{"calendar.book_meeting", "booker"},
		{"calendar.check_availability", "calendar"},
	}

	for _, tt := range tests {
		t.Run(tt.actionType, func(t *testing.T) {
			result, err := registry.Execute(ctx, models.ActionDescriptor{Type: tt.actionType})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Data["by"])
		})
	}

	_, err := registry.Execute(ctx, models.ActionDescriptor{Type: "email.send"})
	assert.True(t, errors.Is(err, ErrNoExecutor))

	registry.SetFallback(named("fallback"))

	result, err := registry.Execute(ctx, models.ActionDescriptor{Type: "email.send"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Data["by"])

	assert.Equal(t, []string{"calendar", "calendar.book_meeting"}, registry.Types())
}

func TestRegistry_LoadPluginsFromEmptyDir(t *testing.T) {
	registry := NewRegistry(testutil.Logger())

	count, err := registry.LoadPlugins(t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = registry.LoadPlugins("")
	require.NoError(t, err)
	assert.Zero(t, count)
}
