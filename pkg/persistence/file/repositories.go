package file

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
)

// TemplateRepository handles template file operations.
type TemplateRepository struct {
	store *store
}

// Save writes a template, replacing any previous version.
func (r *TemplateRepository) Save(_ context.Context, template *models.WorkflowTemplate) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}

	template.UpdatedAt = now

	return r.store.write(templatesDir, template.ID, template)
}

// GetByID returns a template by its ID.
func (r *TemplateRepository) GetByID(_ context.Context, id string) (*models.WorkflowTemplate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	template, err := read[models.WorkflowTemplate](r.store, templatesDir, id)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, persistence.NewTemplateError("GetByID", id, persistence.ErrTemplateNotFound)
		}

		return nil, persistence.NewTemplateError("GetByID", id, err)
	}

	return template, nil
}

// ListActiveByCategory returns active templates of a category, highest success rate first.
func (r *TemplateRepository) ListActiveByCategory(_ context.Context, category models.Category) ([]*models.WorkflowTemplate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	templates, err := list(r.store, templatesDir, func(t *models.WorkflowTemplate) bool {
		return t.Active && t.Category == category
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(templates, func(a, b *models.WorkflowTemplate) int {
		switch {
		case a.SuccessRate > b.SuccessRate:
			return -1
		case a.SuccessRate < b.SuccessRate:
			return 1
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	})

	return templates, nil
}

// UpdateSuccessRate stores a new rolling success rate.
func (r *TemplateRepository) UpdateSuccessRate(_ context.Context, id string, rate float64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	template, err := read[models.WorkflowTemplate](r.store, templatesDir, id)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return persistence.NewTemplateError("UpdateSuccessRate", id, persistence.ErrTemplateNotFound)
		}

		return persistence.NewTemplateError("UpdateSuccessRate", id, err)
	}

	template.SuccessRate = rate
	template.UpdatedAt = time.Now().UTC()

	return r.store.write(templatesDir, id, template)
}

// WorkflowRepository handles workflow file operations.
type WorkflowRepository struct {
	store *store
}

// Create writes a new workflow.
func (r *WorkflowRepository) Create(_ context.Context, workflow *models.Workflow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	err := r.store.write(workflowsDir, workflow.ID, workflow)
	if err != nil {
		return persistence.NewWorkflowError("Create", workflow.ID, err)
	}

	return nil
}

// GetByID returns a workflow by its ID.
func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.get("GetByID", id)
}

func (r *WorkflowRepository) get(op, id string) (*models.Workflow, error) {
	workflow, err := read[models.Workflow](r.store, workflowsDir, id)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError(op, id, err)
	}

	return workflow, nil
}

// UpdateStatus moves the workflow from one status to another atomically.
func (r *WorkflowRepository) UpdateStatus(_ context.Context, id string, from, to models.WorkflowStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	workflow, err := r.get("UpdateStatus", id)
	if err != nil {
		return err
	}

	if workflow.Status != from {
		return persistence.NewWorkflowError("UpdateStatus", id, persistence.ErrStatusConflict)
	}

	now := time.Now().UTC()
	workflow.Status = to
	workflow.UpdatedAt = now

	if to.IsTerminal() {
		workflow.CompletedAt = &now
	}

	return r.store.write(workflowsDir, id, workflow)
}

// ListByTemplate returns the workflows generated from a template, newest first.
func (r *WorkflowRepository) ListByTemplate(_ context.Context, templateID string) ([]*models.Workflow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	workflows, err := list(r.store, workflowsDir, func(w *models.Workflow) bool {
		if templateID == "" {
			return w.TemplateID == nil || *w.TemplateID == ""
		}

		return w.TemplateID != nil && *w.TemplateID == templateID
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(workflows, func(a, b *models.Workflow) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return workflows, nil
}

// CountByTemplate counts the workflows ever run against a template.
func (r *WorkflowRepository) CountByTemplate(ctx context.Context, templateID string) (int, error) {
	workflows, err := r.ListByTemplate(ctx, templateID)
	if err != nil {
		return 0, err
	}

	return len(workflows), nil
}

// TaskRepository handles task file operations.
type TaskRepository struct {
	store *store
}

// Create writes a new task.
func (r *TaskRepository) Create(_ context.Context, task *models.WorkflowTask) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	err := r.store.write(tasksDir, task.ID, task)
	if err != nil {
		return persistence.NewTaskError("Create", task.ID, err)
	}

	return nil
}

// GetByID returns a task by its ID.
func (r *TaskRepository) GetByID(_ context.Context, id string) (*models.WorkflowTask, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.get("GetByID", id)
}

func (r *TaskRepository) get(op, id string) (*models.WorkflowTask, error) {
	task, err := read[models.WorkflowTask](r.store, tasksDir, id)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, persistence.NewTaskError(op, id, persistence.ErrTaskNotFound)
		}

		return nil, persistence.NewTaskError(op, id, err)
	}

	return task, nil
}

// Update replaces a stored task.
func (r *TaskRepository) Update(_ context.Context, task *models.WorkflowTask) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.get("Update", task.ID); err != nil {
		return err
	}

	return r.store.write(tasksDir, task.ID, task)
}

// ListByWorkflow returns the tasks of a workflow in creation order.
func (r *TaskRepository) ListByWorkflow(_ context.Context, workflowID string, statuses ...models.TaskStatus) ([]*models.WorkflowTask, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tasks, err := list(r.store, tasksDir, func(t *models.WorkflowTask) bool {
		return t.WorkflowID == workflowID && (len(statuses) == 0 || slices.Contains(statuses, t.Status))
	})
	if err != nil {
		return nil, err
	}

	sortBy(tasks, func(t *models.WorkflowTask) int64 { return t.CreatedAt.UnixNano() })

	return tasks, nil
}

// TransitionStatus is a compare-and-set on the task status.
func (r *TaskRepository) TransitionStatus(_ context.Context, id string, from, to models.TaskStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	task, err := r.get("TransitionStatus", id)
	if err != nil {
		return false, err
	}

	if task.Status != from {
		return false, nil
	}

	task.Status = to

	if to == models.TaskStatusActive && task.StartedAt == nil {
		now := time.Now().UTC()
		task.StartedAt = &now
	}

	if err := r.store.write(tasksDir, id, task); err != nil {
		return false, err
	}

	return true, nil
}

// DependencyRepository handles dependency edge file operations.
type DependencyRepository struct {
	store *store
}

// Create writes a dependency edge, rejecting duplicates.
func (r *DependencyRepository) Create(_ context.Context, dependency *models.WorkflowDependency) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, err := list(r.store, dependenciesDir, func(d *models.WorkflowDependency) bool {
		return d.TaskID == dependency.TaskID && d.DependsOnTaskID == dependency.DependsOnTaskID
	})
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		return errors.New("dependency " + dependency.TaskID + " -> " + dependency.DependsOnTaskID + " already exists")
	}

	return r.store.write(dependenciesDir, dependency.ID, dependency)
}

// ListByTask returns the edges leaving a task.
func (r *DependencyRepository) ListByTask(_ context.Context, taskID string) ([]*models.WorkflowDependency, error) {
	return r.list(func(d *models.WorkflowDependency) bool { return d.TaskID == taskID })
}

// ListByWorkflow returns every edge of a workflow.
func (r *DependencyRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowDependency, error) {
	return r.list(func(d *models.WorkflowDependency) bool { return d.WorkflowID == workflowID })
}

func (r *DependencyRepository) list(keep func(*models.WorkflowDependency) bool) ([]*models.WorkflowDependency, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	dependencies, err := list(r.store, dependenciesDir, keep)
	if err != nil {
		return nil, err
	}

	sortBy(dependencies, func(d *models.WorkflowDependency) int64 { return d.CreatedAt.UnixNano() })

	return dependencies, nil
}

// ExecutionRepository handles the append-only execution log.
type ExecutionRepository struct {
	store *store
}

// Append writes one execution log entry.
func (r *ExecutionRepository) Append(_ context.Context, execution *models.WorkflowExecution) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(executionsDir, execution.ID, execution)
}

// ListByWorkflow returns the log of a workflow in chronological order.
func (r *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	executions, err := list(r.store, executionsDir, func(e *models.WorkflowExecution) bool {
		return e.WorkflowID == workflowID
	})
	if err != nil {
		return nil, err
	}

	sortBy(executions, func(e *models.WorkflowExecution) int64 { return e.CreatedAt.UnixNano() })

	return executions, nil
}

// LearningRepository handles learning pattern file operations.
type LearningRepository struct {
	store *store
}

// Find returns the pattern with the given identity.
func (r *LearningRepository) Find(_ context.Context, templateID, patternType, patternKey string) (*models.WorkflowLearning, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	learning, err := r.find(templateID, patternType, patternKey)
	if err != nil {
		return nil, err
	}

	if learning == nil {
		return nil, persistence.ErrLearningNotFound
	}

	return learning, nil
}

func (r *LearningRepository) find(templateID, patternType, patternKey string) (*models.WorkflowLearning, error) {
	matches, err := list(r.store, learningDir, func(l *models.WorkflowLearning) bool {
		return l.TemplateID == templateID && l.PatternType == patternType && l.PatternKey == patternKey
	})
	if err != nil || len(matches) == 0 {
		return nil, err
	}

	return matches[0], nil
}

// Save upserts a pattern keyed by (template, type, key).
func (r *LearningRepository) Save(_ context.Context, learning *models.WorkflowLearning) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, err := r.find(learning.TemplateID, learning.PatternType, learning.PatternKey)
	if err != nil {
		return err
	}

	record := *learning
	if existing != nil {
		record.ID = existing.ID
		record.FirstObserved = existing.FirstObserved
	}

	return r.store.write(learningDir, record.ID, &record)
}

// ListByTemplate returns a template's patterns, most confident first.
func (r *LearningRepository) ListByTemplate(_ context.Context, templateID string) ([]*models.WorkflowLearning, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	patterns, err := list(r.store, learningDir, func(l *models.WorkflowLearning) bool {
		return l.TemplateID == templateID
	})
	if err != nil {
		return nil, err
	}

	sortBy(patterns, func(l *models.WorkflowLearning) float64 { return -l.Confidence })

	return patterns, nil
}
