package learning

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/testutil"
)

// A Tuesday morning.
var createdAt = time.Date(2025, time.March, 11, 9, 30, 0, 0, time.UTC)

func TestRecorder_TwoFailuresOfANewPattern(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFilePersistence(t)
	recorder := NewRecorder(store, testutil.Logger())

	template := testutil.CreateTestTemplate(t, testutil.ChainedSchedulingSteps(), testutil.WithSuccessRate(50))
	require.NoError(t, store.TemplateRepository().Save(ctx, template))

	run := func() *models.Workflow {
		workflow := testutil.CreateWorkflow(t, store, func(w *models.Workflow) {
			w.TemplateID = &template.ID
			w.CreatedAt = createdAt
		})
		testutil.CreateTask(t, store, workflow.ID, func(task *models.WorkflowTask) {
			task.Kind = models.StepKindExecute
			task.Status = models.TaskStatusFailed
			task.DataCollected = map[string]any{"startTime": "14:00"}
		})

		return workflow
	}

	first := run()
	require.NoError(t, recorder.RecordOutcome(ctx, first.ID, false, &models.Feedback{Reason: "calendar unavailable"}))

	stored, err := store.WorkflowRepository().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	key, err := json.Marshal(map[string]any{"time_of_day": "afternoon", "day_of_week": "tuesday"})
	require.NoError(t, err)

	pattern, err := store.LearningRepository().Find(ctx, template.ID, models.PatternSchedulingTimePreference, string(key))
	require.NoError(t, err)
	assert.InDelta(t, 40.0, pattern.Confidence, 0.001)
	assert.Equal(t, 1, pattern.OccurrenceCount)
	assert.Zero(t, pattern.SuccessCount)

	second := run()
	require.NoError(t, recorder.RecordOutcome(ctx, second.ID, false, nil))

	pattern, err = store.LearningRepository().Find(ctx, template.ID, models.PatternSchedulingTimePreference, string(key))
	require.NoError(t, err)
	assert.InDelta(t, 1.3, pattern.Confidence, 0.001)
	assert.Equal(t, 2, pattern.OccurrenceCount)

	updated, err := store.TemplateRepository().GetByID(ctx, template.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, updated.SuccessRate, 0.001)

	entries, err := store.ExecutionRepository().ListByWorkflow(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionWorkflowFailed, entries[0].Action)
	assert.Equal(t, "calendar unavailable", entries[0].Input["reason"])
}

func TestRecorder_SuccessRate(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFilePersistence(t)
	recorder := NewRecorder(store, testutil.Logger())

	template := testutil.CreateTestTemplate(t, testutil.ChainedSchedulingSteps(), testutil.WithSuccessRate(0))
	require.NoError(t, store.TemplateRepository().Save(ctx, template))

	outcomes := []bool{true, false, true, true}
	expected := []float64{100, 50, 200.0 / 3, 75}

	for i, success := range outcomes {
		workflow := testutil.CreateWorkflow(t, store, func(w *models.Workflow) { w.TemplateID = &template.ID })
		require.NoError(t, recorder.RecordOutcome(ctx, workflow.ID, success, nil))

		updated, err := store.TemplateRepository().GetByID(ctx, template.ID)
		require.NoError(t, err)
		assert.InDelta(t, expected[i], updated.SuccessRate, 0.001, "after outcome %d", i+1)
	}
}

func TestRecorder_BuiltinTemplate(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFilePersistence(t)
	recorder := NewRecorder(store, testutil.Logger())

	workflow := testutil.CreateWorkflow(t, store, func(w *models.Workflow) { w.CreatedAt = createdAt })
	testutil.CreateTask(t, store, workflow.ID, func(task *models.WorkflowTask) {
		task.Status = models.TaskStatusCompleted
		task.Prerequisites = []string{"startTime", "attendees"}
	})

	require.NoError(t, recorder.RecordOutcome(ctx, workflow.ID, true, &models.Feedback{Rating: 5}))

	patterns, err := store.LearningRepository().ListByTemplate(ctx, models.BuiltinSchedulingTemplateID)
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	byType := map[string]*models.WorkflowLearning{}
	for _, pattern := range patterns {
		byType[pattern.PatternType] = pattern
	}

	efficiency := byType[models.PatternDataCollectionEfficiency]
	require.NotNil(t, efficiency)
	assert.InDelta(t, 60.0, efficiency.Confidence, 0.001)
	assert.Equal(t, 1, efficiency.SuccessCount)
	assert.JSONEq(t, `{"field_count":2,"fields":["attendees","startTime"]}`, efficiency.PatternKey)

	preference := byType[models.PatternSchedulingTimePreference]
	require.NotNil(t, preference)
	assert.JSONEq(t, `{"time_of_day":"morning","day_of_week":"tuesday"}`, preference.PatternKey)
}

func TestRecorder_AlreadyFinished(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewFilePersistence(t)
	recorder := NewRecorder(store, testutil.Logger())

	workflow := testutil.CreateWorkflow(t, store, func(w *models.Workflow) { w.Category = models.CategorySupport })
	require.NoError(t, recorder.RecordOutcome(ctx, workflow.ID, true, nil))

	err := recorder.RecordOutcome(ctx, workflow.ID, false, nil)
	assert.True(t, persistence.IsStatusConflict(err))

	err = recorder.RecordOutcome(ctx, "missing", true, nil)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestScheduledSlot_PrefersExactKeys(t *testing.T) {
	created := time.Date(2025, time.March, 10, 20, 0, 0, 0, time.UTC)
	collected := map[string]any{
		"date":          "2025-03-13",
		"birth_date":    "1990-05-20",
		"startTime":     "09:30",
		"restart_at":    "22:00",
		"reminder_date": "2025-03-15",
	}

	for range 20 {
		hour, weekday := scheduledSlot(collected, created)
		assert.Equal(t, 9, hour)
		assert.Equal(t, time.Thursday, weekday)
	}

	hour, weekday := scheduledSlot(map[string]any{
		"meeting_date":  "2025-03-14",
		"reminder_date": "2025-03-15",
	}, created)
	assert.Equal(t, 20, hour)
	assert.Equal(t, time.Friday, weekday)
}
