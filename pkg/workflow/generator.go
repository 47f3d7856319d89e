// Package workflow instantiates templates into task graphs and moves tasks
// through their lifecycle.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowpilot/pkg/catalog"
	"github.com/dukex/flowpilot/pkg/events"
	"github.com/dukex/flowpilot/pkg/information"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/visibility"
)

// Step ids containing any of these get the context timezone attached.
var schedulingMarkers = []string{"schedul", "meeting", "availability", "book"}

// Input is the conversation a workflow is generated for.
type Input struct {
	ConversationID string                 `json:"conversation_id" validate:"required"`
	UserID         string                 `json:"user_id,omitempty"`
	Context        models.WorkflowContext `json:"context"`
}

// Generation is the outcome of generating a workflow. Degraded is set when
// some dependency edges could not be stored.
type Generation struct {
	Workflow         *models.Workflow       `json:"workflow"`
	Tasks            []*models.WorkflowTask `json:"tasks"`
	Skipped          []string               `json:"skipped"`
	DependencyErrors []*DependencyError     `json:"-"`
	Degraded         bool                   `json:"degraded"`
}

// Generator turns templates into persisted workflows.
type Generator struct {
	workflows    persistence.WorkflowRepository
	tasks        persistence.TaskRepository
	dependencies persistence.DependencyRepository
	executions   persistence.ExecutionRepository
	scheduler    *Scheduler
	mirror       visibility.Mirror
	notifier     *visibility.Notifier
	threshold    float64
	now          func() time.Time
	logger       *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithMirror sets where user-facing task copies are written.
func WithMirror(mirror visibility.Mirror) GeneratorOption {
	return func(g *Generator) { g.mirror = mirror }
}

// WithGenerationNotifier publishes a WorkflowGenerated event for every workflow.
func WithGenerationNotifier(notifier *visibility.Notifier) GeneratorOption {
	return func(g *Generator) { g.notifier = notifier }
}

// WithSkipThreshold sets the confidence a known value needs for its step to be skipped.
func WithSkipThreshold(threshold float64) GeneratorOption {
	return func(g *Generator) { g.threshold = threshold }
}

// WithGeneratorClock overrides time.Now.
func WithGeneratorClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a generator over the store.
func NewGenerator(store persistence.Persistence, scheduler *Scheduler, logger *slog.Logger, opts ...GeneratorOption) *Generator {
	generator := &Generator{
		workflows:    store.WorkflowRepository(),
		tasks:        store.TaskRepository(),
		dependencies: store.DependencyRepository(),
		executions:   store.ExecutionRepository(),
		scheduler:    scheduler,
		mirror:       visibility.NoopMirror{},
		threshold:    information.DefaultThreshold,
		now:          time.Now,
		logger:       logger.With("module", "workflow_generator"),
	}

	for _, opt := range opts {
		opt(generator)
	}

	return generator
}

// Generate persists a workflow for template, skipping gather steps whose fields
// are already known, and activates the first runnable task.
func (g *Generator) Generate(ctx context.Context, template *models.WorkflowTemplate, input Input) (*Generation, error) {
	steps, err := catalog.ParseStructure(template.Structure)
	if err != nil {
		return nil, fmt.Errorf("failed to generate workflow from template %s: %w", template.ID, err)
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("failed to generate workflow from template %s: %w", template.ID, ErrNoSteps)
	}

	now := g.now().UTC()

	workflow := &models.Workflow{
		ID:             uuid.New().String(),
		TemplateName:   template.Name,
		Category:       template.Category,
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		Status:         models.WorkflowStatusPlanning,
		Context:        input.Context,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if !template.IsBuiltin() {
		workflow.TemplateID = &template.ID
	}

	logger := g.logger.With("workflow_id", workflow.ID, "template", template.Name)

	err = g.workflows.Create(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	generation := &Generation{Workflow: workflow, Tasks: []*models.WorkflowTask{}, Skipped: []string{}}
	taskByStep := make(map[string]*models.WorkflowTask, len(steps))

	for i, step := range steps {
		if g.skippable(step, input.Context) {
			generation.Skipped = append(generation.Skipped, step.ID)
			g.logSkipped(ctx, logger, workflow.ID, step)

			continue
		}

		// Creation order drives scheduling, so every task gets a distinct timestamp.
		task := g.newTask(workflow, step, now.Add(time.Duration(i)*time.Microsecond))

		err := g.tasks.Create(ctx, task)
		if err != nil {
			err = fmt.Errorf("failed to create task for step %s: %w", step.ID, err)
			g.abandon(ctx, logger, workflow, err)

			return nil, err
		}

		taskByStep[step.ID] = task
		generation.Tasks = append(generation.Tasks, task)

		mirrorTask(ctx, g.mirror, logger, workflow, task)

		for _, dependsOn := range step.DependsOn {
			target, ok := taskByStep[dependsOn]
			if !ok {
				// The step was skipped, so the edge is dropped.
				continue
			}

			if depErr := g.linkDependency(ctx, workflow.ID, task, target); depErr != nil {
				logger.WarnContext(ctx, "Dependency not stored, continuing without it", "error", depErr)
				generation.DependencyErrors = append(generation.DependencyErrors, depErr)
				generation.Degraded = true
			}
		}
	}

	err = g.workflows.UpdateStatus(ctx, workflow.ID, models.WorkflowStatusPlanning, models.WorkflowStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to activate workflow: %w", err)
	}

	workflow.Status = models.WorkflowStatusActive

	g.activateFirst(ctx, logger, generation)

	appendExecution(ctx, g.executions, logger, workflow.ID, nil, models.ActionWorkflowCreated, models.ActorSystem, map[string]any{
		"template_name": template.Name,
		"task_count":    len(generation.Tasks),
		"skipped":       generation.Skipped,
	})

	taskIDs := make([]string, len(generation.Tasks))
	for i, task := range generation.Tasks {
		taskIDs[i] = task.ID
	}

	err = g.notifier.Notify(ctx, workflow.ID, events.WorkflowGenerated{
		BaseEvent:    events.NewBaseEvent(events.WorkflowGeneratedEvent, workflow.ID),
		TemplateName: template.Name,
		TaskIDs:      taskIDs,
		Skipped:      generation.Skipped,
		Degraded:     generation.Degraded,
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to publish workflow generated event", "error", err)
	}

	logger.InfoContext(ctx, "Workflow generated",
		"tasks", len(generation.Tasks), "skipped", len(generation.Skipped), "degraded", generation.Degraded)

	return generation, nil
}

// skippable reports whether every required field of a gather step, or of a
// step flagged skip-if-known, is already known with enough confidence.
func (g *Generator) skippable(step models.StepDefinition, workflowContext models.WorkflowContext) bool {
	if step.Kind != models.StepKindGather && !step.SkipIfKnown() {
		return false
	}

	if len(step.RequiredFields) == 0 {
		return false
	}

	for _, field := range step.RequiredFields {
		known, ok := information.KnownValue(field, workflowContext.ExistingData, workflowContext.Memory)
		if !ok || known.Confidence < g.threshold {
			return false
		}
	}

	return true
}

// abandon moves a half-built workflow out of planning so it is never picked up
// with a partial task list.
func (g *Generator) abandon(ctx context.Context, logger *slog.Logger, workflow *models.Workflow, cause error) {
	logger.ErrorContext(ctx, "Workflow generation failed", "error", cause)

	err := g.workflows.UpdateStatus(ctx, workflow.ID, models.WorkflowStatusPlanning, models.WorkflowStatusFailed)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to mark workflow as failed", "error", err)
	} else {
		workflow.Status = models.WorkflowStatusFailed
	}

	appendExecution(ctx, g.executions, logger, workflow.ID, nil, models.ActionWorkflowFailed, models.ActorSystem, map[string]any{
		"reason": cause.Error(),
	})
}

func (g *Generator) logSkipped(ctx context.Context, logger *slog.Logger, workflowID string, step models.StepDefinition) {
	logger.InfoContext(ctx, "Skipping step, required fields already known", "step_id", step.ID)

	appendExecution(ctx, g.executions, logger, workflowID, nil, models.ActionTaskSkipped, models.ActorSystem, map[string]any{
		"step_id": step.ID,
		"fields":  step.RequiredFields,
	})
}

func (g *Generator) newTask(workflow *models.Workflow, step models.StepDefinition, createdAt time.Time) *models.WorkflowTask {
	task := &models.WorkflowTask{
		ID:              uuid.New().String(),
		WorkflowID:      workflow.ID,
		StepID:          step.ID,
		Kind:            step.Kind,
		Title:           step.Title,
		Description:     step.Description,
		Status:          models.TaskStatusPending,
		Prerequisites:   slices.Clone(step.RequiredFields),
		ValidationRules: make(map[string]string),
		DataCollected:   make(map[string]any),
		Critical:        step.Critical,
		RetryOnFailure:  step.RetryOnFailure,
		CreatedAt:       createdAt,
	}

	for _, field := range slices.Concat(step.RequiredFields, step.OptionalFields) {
		task.ValidationRules[field] = information.RuleFor(step, field)
	}

	switch step.Kind {
	case models.StepKindExecute:
		task.ActionType = step.ActionType()

		if mentionsScheduling(step.ID) {
			task.Timezone = workflow.Context.Timezone
		}
	case models.StepKindGather:
		task.Language = workflow.Context.Language
	}

	return task
}

func mentionsScheduling(stepID string) bool {
	id := strings.ToLower(stepID)

	return slices.ContainsFunc(schedulingMarkers, func(marker string) bool {
		return strings.Contains(id, marker)
	})
}

// linkDependency stores a blocking edge from task to dependsOn.
func (g *Generator) linkDependency(ctx context.Context, workflowID string, task, dependsOn *models.WorkflowTask) *DependencyError {
	err := g.dependencies.Create(ctx, &models.WorkflowDependency{
		ID:              uuid.New().String(),
		WorkflowID:      workflowID,
		TaskID:          task.ID,
		DependsOnTaskID: dependsOn.ID,
		Type:            models.DependencyBlocks,
		CreatedAt:       task.CreatedAt,
	})
	if err != nil {
		return &DependencyError{
			TaskID:          task.ID,
			DependsOnTaskID: dependsOn.ID,
			StepID:          task.StepID,
			DependsOnStepID: dependsOn.StepID,
			Err:             err,
		}
	}

	return nil
}

// activateFirst claims the first runnable task. Failure leaves every task
// pending; callers can still resolve the next task explicitly.
func (g *Generator) activateFirst(ctx context.Context, logger *slog.Logger, generation *Generation) {
	if g.scheduler == nil {
		return
	}

	claimed, err := g.scheduler.Claim(ctx, generation.Workflow.ID)
	if err != nil {
		logger.WarnContext(ctx, "Failed to activate first task", "error", err)

		return
	}

	if claimed == nil {
		return
	}

	for i, task := range generation.Tasks {
		if task.ID == claimed.ID {
			generation.Tasks[i] = claimed
		}
	}

	mirrorTask(ctx, g.mirror, logger, generation.Workflow, claimed)
}

// mirrorTask writes the user-facing copy of task. Failures are logged only.
func mirrorTask(ctx context.Context, mirror visibility.Mirror, logger *slog.Logger, workflow *models.Workflow, task *models.WorkflowTask) {
	err := mirror.MirrorTask(ctx, &models.ConversationTask{
		ID:             "ct-" + task.ID,
		WorkflowID:     workflow.ID,
		ConversationID: workflow.ConversationID,
		TaskID:         task.ID,
		Title:          task.Title,
		Description:    task.Description,
		Status:         task.Status,
		CreatedAt:      task.CreatedAt,
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to mirror conversation task", "task_id", task.ID, "error", err)
	}
}

// appendExecution writes an audit row. The log is best-effort; failures are logged only.
func appendExecution(ctx context.Context, executions persistence.ExecutionRepository, logger *slog.Logger, workflowID string, taskID *string, action, actor string, input map[string]any) {
	err := executions.Append(ctx, &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		TaskID:     taskID,
		Action:     action,
		Actor:      actor,
		Input:      input,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to append execution log", "action", action, "error", err)
	}
}
