package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
)

const maxClaimAttempts = 3

// Scheduler resolves the next runnable task of a workflow. It keeps no state;
// every call reads the store afresh.
type Scheduler struct {
	tasks        persistence.TaskRepository
	dependencies persistence.DependencyRepository
	executions   persistence.ExecutionRepository
	logger       *slog.Logger
}

// NewScheduler creates a scheduler over the store.
func NewScheduler(store persistence.Persistence, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:        store.TaskRepository(),
		dependencies: store.DependencyRepository(),
		executions:   store.ExecutionRepository(),
		logger:       logger.With("module", "task_scheduler"),
	}
}

// NextTask returns the earliest open task whose blocking dependencies are all
// completed, or nil when no task is runnable. An active task keeps being
// returned until it is completed.
func (s *Scheduler) NextTask(ctx context.Context, workflowID string) (*models.WorkflowTask, error) {
	runnable, err := s.runnable(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if len(runnable) == 0 {
		return nil, nil
	}

	return runnable[0], nil
}

// Claim moves the earliest runnable pending task to active with a
// compare-and-set and returns it. When a concurrent caller claims the same task
// first, the workflow is rescanned. It returns nil when nothing is left to claim.
func (s *Scheduler) Claim(ctx context.Context, workflowID string) (*models.WorkflowTask, error) {
	for range maxClaimAttempts {
		runnable, err := s.runnable(ctx, workflowID)
		if err != nil {
			return nil, err
		}

		var candidate *models.WorkflowTask

		for _, task := range runnable {
			if task.Status == models.TaskStatusPending {
				candidate = task

				break
			}
		}

		if candidate == nil {
			return nil, nil
		}

		claimed, err := s.tasks.TransitionStatus(ctx, candidate.ID, models.TaskStatusPending, models.TaskStatusActive)
		if err != nil {
			return nil, fmt.Errorf("failed to claim task %s: %w", candidate.ID, err)
		}

		if !claimed {
			s.logger.DebugContext(ctx, "Task claimed concurrently, rescanning", "workflow_id", workflowID, "task_id", candidate.ID)

			continue
		}

		task, err := s.tasks.GetByID(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}

		appendExecution(ctx, s.executions, s.logger, workflowID, &task.ID, models.ActionTaskActivated, models.ActorSystem,
			map[string]any{"step_id": task.StepID})

		return task, nil
	}

	return nil, fmt.Errorf("failed to claim a task of workflow %s: %w", workflowID, persistence.ErrStatusConflict)
}

// runnable lists, in creation order, the open tasks whose blocking dependencies are completed.
func (s *Scheduler) runnable(ctx context.Context, workflowID string) ([]*models.WorkflowTask, error) {
	all, err := s.tasks.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return runnableTasks(ctx, s.dependencies, all)
}

// runnableTasks filters all, the full task list of one workflow, down to the
// open tasks that nothing blocks.
func runnableTasks(ctx context.Context, dependencies persistence.DependencyRepository, all []*models.WorkflowTask) ([]*models.WorkflowTask, error) {
	status := make(map[string]models.TaskStatus, len(all))
	for _, task := range all {
		status[task.ID] = task.Status
	}

	var runnable []*models.WorkflowTask

	for _, task := range all {
		if !task.IsOpen() {
			continue
		}

		ready, err := unblocked(ctx, dependencies, task, status)
		if err != nil {
			return nil, err
		}

		if ready {
			runnable = append(runnable, task)
		}
	}

	return runnable, nil
}

func unblocked(ctx context.Context, repository persistence.DependencyRepository, task *models.WorkflowTask, status map[string]models.TaskStatus) (bool, error) {
	dependencies, err := repository.ListByTask(ctx, task.ID)
	if err != nil {
		return false, fmt.Errorf("failed to list dependencies of task %s: %w", task.ID, err)
	}

	for _, dependency := range dependencies {
		if dependency.Type != models.DependencyBlocks {
			continue
		}

		if status[dependency.DependsOnTaskID] != models.TaskStatusCompleted {
			return false, nil
		}
	}

	return true, nil
}
