package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/dukex/flowpilot/pkg/events"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/visibility"
)

const defaultMaxAttempts = 3

// OutcomeRecorder finalizes a workflow once it succeeds or fails.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, workflowID string, success bool, feedback *models.Feedback) error
}

// Lifecycle completes, fails and cancels tasks and workflows.
type Lifecycle struct {
	workflows    persistence.WorkflowRepository
	tasks        persistence.TaskRepository
	dependencies persistence.DependencyRepository
	executions   persistence.ExecutionRepository
	recorder    OutcomeRecorder
	mirror      visibility.Mirror
	notifier    *visibility.Notifier
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithLifecycleMirror sets where task status changes are mirrored.
func WithLifecycleMirror(mirror visibility.Mirror) LifecycleOption {
	return func(l *Lifecycle) { l.mirror = mirror }
}

// WithLifecycleNotifier publishes task and workflow events.
func WithLifecycleNotifier(notifier *visibility.Notifier) LifecycleOption {
	return func(l *Lifecycle) { l.notifier = notifier }
}

// WithMaxAttempts sets how many times a retry-on-failure task may fail before it stays failed.
func WithMaxAttempts(attempts int) LifecycleOption {
	return func(l *Lifecycle) { l.maxAttempts = attempts }
}

// WithLifecycleClock overrides time.Now.
func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) { l.now = now }
}

// NewLifecycle creates a lifecycle that reports finished workflows to recorder.
func NewLifecycle(store persistence.Persistence, recorder OutcomeRecorder, logger *slog.Logger, opts ...LifecycleOption) *Lifecycle {
	lifecycle := &Lifecycle{
		workflows:    store.WorkflowRepository(),
		tasks:        store.TaskRepository(),
		dependencies: store.DependencyRepository(),
		executions:   store.ExecutionRepository(),
		recorder:    recorder,
		mirror:      visibility.NoopMirror{},
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		logger:      logger.With("module", "task_lifecycle"),
	}

	for _, opt := range opts {
		opt(lifecycle)
	}

	return lifecycle
}

// CompleteTask merges data into the task and marks it completed. When nothing
// is left to run afterwards the workflow finishes.
func (l *Lifecycle) CompleteTask(ctx context.Context, taskID string, data map[string]any) (*models.WorkflowTask, error) {
	task, workflow, err := l.openTask(ctx, taskID, models.TaskStatusCompleted)
	if err != nil {
		return nil, err
	}

	err = l.transition(ctx, task, models.TaskStatusCompleted)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	started := task.CreatedAt

	if task.StartedAt != nil {
		started = *task.StartedAt
	}

	duration := now.Sub(started).Milliseconds()

	if task.DataCollected == nil {
		task.DataCollected = make(map[string]any)
	}

	maps.Copy(task.DataCollected, data)
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	task.DurationMS = &duration

	err = l.tasks.Update(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to store completed task: %w", err)
	}

	logger := l.logger.With("workflow_id", workflow.ID, "task_id", task.ID, "step_id", task.StepID)
	logger.InfoContext(ctx, "Task completed", "duration_ms", duration)

	appendExecution(ctx, l.executions, logger, workflow.ID, &task.ID, models.ActionTaskCompleted, models.ActorUser, data)
	mirrorTask(ctx, l.mirror, logger, workflow, task)

	err = l.notifier.Notify(ctx, workflow.ID, events.TaskCompleted{
		BaseEvent:  events.NewBaseEvent(events.TaskCompletedEvent, workflow.ID),
		TaskID:     task.ID,
		StepID:     task.StepID,
		Data:       data,
		DurationMS: duration,
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to publish task completed event", "error", err)
	}

	err = l.settle(ctx, workflow, "")
	if err != nil {
		return nil, err
	}

	return task, nil
}

// FailTask records a failed attempt. Retry-on-failure tasks return to pending
// until the attempt limit; otherwise the task fails. A critical failure fails
// the workflow at once, any other failure finishes it when nothing is left to run.
func (l *Lifecycle) FailTask(ctx context.Context, taskID, reason string) (*models.WorkflowTask, error) {
	task, workflow, err := l.openTask(ctx, taskID, models.TaskStatusFailed)
	if err != nil {
		return nil, err
	}

	logger := l.logger.With("workflow_id", workflow.ID, "task_id", task.ID, "step_id", task.StepID)

	task.Attempts++

	if task.RetryOnFailure && task.Attempts < l.maxAttempts {
		err = l.transition(ctx, task, models.TaskStatusPending)
		if err != nil {
			return nil, err
		}

		task.Status = models.TaskStatusPending
		task.StartedAt = nil

		err = l.tasks.Update(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("failed to store retried task: %w", err)
		}

		logger.WarnContext(ctx, "Task failed, will retry", "attempt", task.Attempts, "reason", reason)
		appendExecution(ctx, l.executions, logger, workflow.ID, &task.ID, models.ActionTaskRetried, models.ActorSystem,
			map[string]any{"reason": reason, "attempt": task.Attempts})
		mirrorTask(ctx, l.mirror, logger, workflow, task)

		return task, nil
	}

	err = l.transition(ctx, task, models.TaskStatusFailed)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	task.Status = models.TaskStatusFailed
	task.CompletedAt = &now

	err = l.tasks.Update(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to store failed task: %w", err)
	}

	logger.WarnContext(ctx, "Task failed", "attempts", task.Attempts, "critical", task.Critical, "reason", reason)
	appendExecution(ctx, l.executions, logger, workflow.ID, &task.ID, models.ActionTaskFailed, models.ActorSystem,
		map[string]any{"reason": reason, "attempts": task.Attempts})
	mirrorTask(ctx, l.mirror, logger, workflow, task)

	if task.Critical {
		err = l.finish(ctx, workflow, false, &models.Feedback{Reason: reason})
	} else {
		err = l.settle(ctx, workflow, reason)
	}

	if err != nil {
		return nil, err
	}

	return task, nil
}

// CancelWorkflow abandons a workflow that has not finished. Its tasks are kept as they are.
func (l *Lifecycle) CancelWorkflow(ctx context.Context, workflowID, reason string) error {
	workflow, err := l.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if !workflow.Status.CanTransitionTo(models.WorkflowStatusCancelled) {
		return &TransitionError{
			Entity: "workflow", ID: workflowID,
			From: string(workflow.Status), To: string(models.WorkflowStatusCancelled),
		}
	}

	err = l.workflows.UpdateStatus(ctx, workflowID, workflow.Status, models.WorkflowStatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel workflow: %w", err)
	}

	l.logger.InfoContext(ctx, "Workflow cancelled", "workflow_id", workflowID, "reason", reason)
	appendExecution(ctx, l.executions, l.logger, workflowID, nil, models.ActionWorkflowCancelled, models.ActorUser,
		map[string]any{"reason": reason})

	err = l.notifier.Notify(ctx, workflowID, events.WorkflowFinished{
		BaseEvent: events.NewBaseEvent(events.WorkflowFinishedEvent, workflowID),
		Status:    models.WorkflowStatusCancelled,
		Reason:    reason,
	})
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to publish workflow cancelled event", "workflow_id", workflowID, "error", err)
	}

	return nil
}

// openTask loads a task that may still change status, together with its running workflow.
func (l *Lifecycle) openTask(ctx context.Context, taskID string, to models.TaskStatus) (*models.WorkflowTask, *models.Workflow, error) {
	task, err := l.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	if !task.IsOpen() {
		return nil, nil, &TransitionError{Entity: "task", ID: taskID, From: string(task.Status), To: string(to)}
	}

	workflow, err := l.workflows.GetByID(ctx, task.WorkflowID)
	if err != nil {
		return nil, nil, err
	}

	if workflow.Status.IsTerminal() {
		return nil, nil, &TransitionError{
			Entity: "workflow", ID: workflow.ID,
			From: string(workflow.Status), To: string(models.WorkflowStatusActive),
		}
	}

	return task, workflow, nil
}

// transition applies the status change as a compare-and-set against the status the task was read with.
func (l *Lifecycle) transition(ctx context.Context, task *models.WorkflowTask, to models.TaskStatus) error {
	ok, err := l.tasks.TransitionStatus(ctx, task.ID, task.Status, to)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	if !ok {
		return persistence.NewTaskError("TransitionStatus", task.ID, persistence.ErrStatusConflict)
	}

	return nil
}

// settle finishes the workflow once no task is runnable. It succeeds when every
// critical task completed; reason explains a failure that ends it.
func (l *Lifecycle) settle(ctx context.Context, workflow *models.Workflow, reason string) error {
	all, err := l.tasks.ListByWorkflow(ctx, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	runnable, err := runnableTasks(ctx, l.dependencies, all)
	if err != nil {
		return err
	}

	if len(runnable) > 0 {
		return nil
	}

	for _, task := range all {
		if task.Critical && task.Status != models.TaskStatusCompleted {
			if reason == "" {
				reason = "critical step " + task.StepID + " did not complete"
			}

			return l.finish(ctx, workflow, false, &models.Feedback{Reason: reason})
		}
	}

	return l.finish(ctx, workflow, true, nil)
}

func (l *Lifecycle) finish(ctx context.Context, workflow *models.Workflow, success bool, feedback *models.Feedback) error {
	err := l.recorder.RecordOutcome(ctx, workflow.ID, success, feedback)
	if err != nil {
		return fmt.Errorf("failed to record workflow outcome: %w", err)
	}

	status := models.WorkflowStatusCompleted
	reason := ""

	if !success {
		status = models.WorkflowStatusFailed

		if feedback != nil {
			reason = feedback.Reason
		}
	}

	err = l.notifier.Notify(ctx, workflow.ID, events.WorkflowFinished{
		BaseEvent: events.NewBaseEvent(events.WorkflowFinishedEvent, workflow.ID),
		Status:    status,
		Reason:    reason,
	})
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to publish workflow finished event", "workflow_id", workflow.ID, "error", err)
	}

	return nil
}
