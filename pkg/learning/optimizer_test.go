package learning

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/testutil"
)

func appendSkip(t *testing.T, store persistence.Persistence, workflowID, stepID string) {
	t.Helper()

	require.NoError(t, store.ExecutionRepository().Append(context.Background(), &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Action:     models.ActionTaskSkipped,
		Actor:      models.ActorSystem,
		Input:      map[string]any{"step_id": stepID},
		CreatedAt:  time.Now().UTC(),
	}))
}

func link(t *testing.T, store persistence.Persistence, workflowID string, task, dependsOn *models.WorkflowTask) {
	t.Helper()

	require.NoError(t, store.DependencyRepository().Create(context.Background(), &models.WorkflowDependency{
		ID:              uuid.New().String(),
		WorkflowID:      workflowID,
		TaskID:          task.ID,
		DependsOnTaskID: dependsOn.ID,
		Type:            models.DependencyBlocks,
		CreatedAt:       time.Now().UTC(),
	}))
}

func TestOptimizer_SuggestOptimizations(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFilePersistence(t)
	optimizer := NewOptimizer(store, testutil.Logger())

	templateID := "tpl-contact"
	base := time.Now().UTC().Add(-time.Hour)

	var latest *models.Workflow

	for i := range 3 {
		latest = testutil.CreateWorkflow(t, store, func(w *models.Workflow) {
			w.TemplateID = &templateID
			w.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		})
		appendSkip(t, store, latest.ID, "gather_contact")

		if i < 2 {
			appendSkip(t, store, latest.ID, "gather_notes")
		}
	}

	step := func(id string, offset time.Duration) func(*models.WorkflowTask) {
		return func(task *models.WorkflowTask) {
			task.StepID = id
			task.CreatedAt = base.Add(offset)
		}
	}

	company := testutil.CreateTask(t, store, latest.ID, step("gather_company", time.Second))
	budget := testutil.CreateTask(t, store, latest.ID, step("gather_budget", 2*time.Second))
	review := testutil.CreateTask(t, store, latest.ID, step("review", 3*time.Second))
	submit := testutil.CreateTask(t, store, latest.ID, step("submit", 4*time.Second))
	link(t, store, latest.ID, review, company)
	link(t, store, latest.ID, review, budget)
	link(t, store, latest.ID, submit, review)

	require.NoError(t, store.LearningRepository().Save(ctx, &models.WorkflowLearning{
		ID: "l1", TemplateID: templateID, PatternType: models.PatternDataCollectionEfficiency,
		PatternKey: `{"field_count":1}`, PatternData: map[string]any{"field_count": 1},
		Confidence: 82, OccurrenceCount: 12, SuccessCount: 11,
	}))
	require.NoError(t, store.LearningRepository().Save(ctx, &models.WorkflowLearning{
		ID: "l2", TemplateID: templateID, PatternType: models.PatternSchedulingTimePreference,
		PatternKey: `{"time_of_day":"evening"}`, PatternData: map[string]any{"time_of_day": "evening"},
		Confidence: 70, OccurrenceCount: 3,
	}))

	suggestions, err := optimizer.SuggestOptimizations(ctx, latest.ID)
	require.NoError(t, err)

	byType := map[models.OptimizationType][]models.Optimization{}
	for _, suggestion := range suggestions {
		byType[suggestion.Type] = append(byType[suggestion.Type], suggestion)
	}

	require.Len(t, byType[models.OptimizationRemoveStep], 1)
	removal := byType[models.OptimizationRemoveStep][0]
	assert.Equal(t, []string{"gather_contact"}, removal.StepIDs)
	assert.InDelta(t, 100.0, removal.Confidence, 0.001)

	require.Len(t, byType[models.OptimizationParallelize], 1)
	assert.ElementsMatch(t, []string{"gather_company", "gather_budget"}, byType[models.OptimizationParallelize][0].StepIDs)

	require.Len(t, byType[models.OptimizationAdjustBehavior], 1)
	adjustment := byType[models.OptimizationAdjustBehavior][0]
	assert.Equal(t, models.PatternDataCollectionEfficiency, adjustment.PatternType)
	assert.InDelta(t, 82.0, adjustment.Confidence, 0.001)
}

func TestOptimizer_Chain(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFilePersistence(t)

	workflow := testutil.CreateWorkflow(t, store)
	first := testutil.CreateTask(t, store, workflow.ID)
	second := testutil.CreateTask(t, store, workflow.ID)
	third := testutil.CreateTask(t, store, workflow.ID)
	link(t, store, workflow.ID, second, first)
	link(t, store, workflow.ID, third, second)

	suggestions, err := NewOptimizer(store, testutil.Logger()).SuggestOptimizations(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Empty(t, suggestions)

	_, err = NewOptimizer(store, testutil.Logger()).SuggestOptimizations(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestReaches(t *testing.T) {
	graph := map[string][]string{"c": {"b"}, "b": {"a"}}

	assert.True(t, reaches(graph, "c", "a"))
	assert.True(t, reaches(graph, "b", "a"))
	assert.False(t, reaches(graph, "a", "c"))
	assert.False(t, reaches(graph, "a", "b"))
}
