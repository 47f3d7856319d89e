package file

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_HealthCheck(t *testing.T) {
	ctx := context.Background()

	p := NewPersistence("file://" + t.TempDir())
	assert.NoError(t, p.HealthCheck(ctx))

	missing := NewPersistence("/does/not/exist/flowpilot")
	assert.ErrorIs(t, missing.HealthCheck(ctx), os.ErrNotExist)
}

func TestTemplateRepository_ListActiveByCategory(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).TemplateRepository()

	empty, err := repo.ListActiveByCategory(ctx, models.CategoryScheduling)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.Save(ctx, &models.WorkflowTemplate{ID: "a", Name: "Low", Category: models.CategoryScheduling, SuccessRate: 10, Active: true}))
	require.NoError(t, repo.Save(ctx, &models.WorkflowTemplate{ID: "b", Name: "High", Category: models.CategoryScheduling, SuccessRate: 90, Active: true}))
	require.NoError(t, repo.Save(ctx, &models.WorkflowTemplate{ID: "c", Name: "Off", Category: models.CategoryScheduling, SuccessRate: 99}))

	templates, err := repo.ListActiveByCategory(ctx, models.CategoryScheduling)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "b", templates[0].ID)
	assert.Equal(t, "a", templates[1].ID)

	require.NoError(t, repo.UpdateSuccessRate(ctx, "a", 95))

	templates, err = repo.ListActiveByCategory(ctx, models.CategoryScheduling)
	require.NoError(t, err)
	assert.Equal(t, "a", templates[0].ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsTemplateNotFound(err))
	assert.True(t, persistence.IsTemplateNotFound(repo.UpdateSuccessRate(ctx, "missing", 1)))
}

func TestWorkflowRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	workflow := &models.Workflow{ID: uuid.New().String(), Status: models.WorkflowStatusPlanning, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, workflow))

	require.NoError(t, repo.UpdateStatus(ctx, workflow.ID, models.WorkflowStatusPlanning, models.WorkflowStatusActive))
	assert.True(t, persistence.IsStatusConflict(
		repo.UpdateStatus(ctx, workflow.ID, models.WorkflowStatusPlanning, models.WorkflowStatusActive)))

	require.NoError(t, repo.UpdateStatus(ctx, workflow.ID, models.WorkflowStatusActive, models.WorkflowStatusCancelled))

	stored, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusCancelled, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_ListByTemplate(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	templateID := "tpl-1"
	base := time.Now()

	for i, id := range []*string{&templateID, &templateID, nil} {
		require.NoError(t, repo.Create(ctx, &models.Workflow{
			ID:         uuid.New().String(),
			TemplateID: id,
			Status:     models.WorkflowStatusActive,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	workflows, err := repo.ListByTemplate(ctx, templateID)
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.True(t, workflows[0].CreatedAt.After(workflows[1].CreatedAt))

	count, err := repo.CountByTemplate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTaskRepository_TransitionStatusIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).TaskRepository()

	task := &models.WorkflowTask{ID: uuid.New().String(), WorkflowID: "wf", Status: models.TaskStatusPending, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, task))

	var (
		wins atomic.Int32
		wg   sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := repo.TransitionStatus(ctx, task.ID, models.TaskStatusPending, models.TaskStatusActive)
			assert.NoError(t, err)

			if ok {
				wins.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	stored, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusActive, stored.Status)
	assert.NotNil(t, stored.StartedAt)
}

func TestTaskRepository_ListByWorkflow(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).TaskRepository()

	base := time.Now()
	ids := make([]string, 3)

	for i := range ids {
		ids[i] = uuid.New().String()
	}

	// Insert out of order; listing must follow creation time.
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, repo.Create(ctx, &models.WorkflowTask{
			ID:         ids[i],
			WorkflowID: "wf",
			Status:     models.TaskStatusPending,
			CreatedAt:  base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	require.NoError(t, repo.Create(ctx, &models.WorkflowTask{ID: uuid.New().String(), WorkflowID: "other", CreatedAt: base}))

	tasks, err := repo.ListByWorkflow(ctx, "wf")
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	for i, task := range tasks {
		assert.Equal(t, ids[i], task.ID)
	}

	tasks[0].Status = models.TaskStatusCompleted
	require.NoError(t, repo.Update(ctx, tasks[0]))

	pending, err := repo.ListByWorkflow(ctx, "wf", models.TaskStatusPending, models.TaskStatusActive)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	missing := &models.WorkflowTask{ID: "missing"}
	assert.True(t, persistence.IsTaskNotFound(repo.Update(ctx, missing)))
}

func TestDependencyRepository_RejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).DependencyRepository()

	edge := &models.WorkflowDependency{ID: uuid.New().String(), WorkflowID: "wf", TaskID: "b", DependsOnTaskID: "a", Type: models.DependencyBlocks}
	require.NoError(t, repo.Create(ctx, edge))

	duplicate := *edge
	duplicate.ID = uuid.New().String()
	assert.Error(t, repo.Create(ctx, &duplicate))

	edges, err := repo.ListByTask(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, edges, 1)

	edges, err = repo.ListByWorkflow(ctx, "wf")
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestLearningRepository_SaveUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).LearningRepository()

	_, err := repo.Find(ctx, "tpl", models.PatternDataCollectionEfficiency, "{}")
	assert.ErrorIs(t, err, persistence.ErrLearningNotFound)

	first := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, &models.WorkflowLearning{
		ID: uuid.New().String(), TemplateID: "tpl", PatternType: models.PatternDataCollectionEfficiency,
		PatternKey: "{}", Confidence: 40, OccurrenceCount: 1, FirstObserved: first, LastObserved: first,
	}))
	require.NoError(t, repo.Save(ctx, &models.WorkflowLearning{
		ID: uuid.New().String(), TemplateID: "tpl", PatternType: models.PatternDataCollectionEfficiency,
		PatternKey: "{}", Confidence: 1.3, OccurrenceCount: 2, FirstObserved: time.Now(), LastObserved: time.Now(),
	}))

	patterns, err := repo.ListByTemplate(ctx, "tpl")
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.InDelta(t, 1.3, patterns[0].Confidence, 0.0001)
	assert.Equal(t, 2, patterns[0].OccurrenceCount)
	assert.True(t, patterns[0].FirstObserved.Equal(first))
}

func TestStore_RejectsPathTraversal(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	err := repo.Create(ctx, &models.Workflow{ID: "../escape"})
	assert.Error(t, err)
}
