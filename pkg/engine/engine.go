// Package engine is the library API of flowpilot: it detects when a
// conversation calls for a workflow, generates and advances it, works out what
// to ask the user and learns from the outcome.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/flowpilot/pkg/actions"
	"github.com/dukex/flowpilot/pkg/actions/logaction"
	"github.com/dukex/flowpilot/pkg/catalog"
	"github.com/dukex/flowpilot/pkg/information"
	"github.com/dukex/flowpilot/pkg/learning"
	"github.com/dukex/flowpilot/pkg/log"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/otelhelper"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/trigger"
	"github.com/dukex/flowpilot/pkg/visibility"
	"github.com/dukex/flowpilot/pkg/workflow"
)

const tracerName = "github.com/dukex/flowpilot/pkg/engine"

// ErrInvalidInput is returned when a request fails validation.
var ErrInvalidInput = errors.New("invalid input")

// Engine wires the components together. It keeps no state of its own; every
// call reads and writes the store.
type Engine struct {
	store       persistence.Persistence
	templates   persistence.TemplateRepository
	detector    *trigger.Detector
	generator   *workflow.Generator
	scheduler   *workflow.Scheduler
	lifecycle   *workflow.Lifecycle
	information *information.Orchestrator
	recorder    *learning.Recorder
	optimizer   *learning.Optimizer
	executor    actions.Executor
	validate    *validator.Validate
	tracer      trace.Tracer
	now         func() time.Time
	logger      *slog.Logger
}

// New creates an engine over store.
func New(store persistence.Persistence, logger *slog.Logger, opts ...Option) *Engine {
	o := &options{
		mirror:    visibility.NoopMirror{},
		templates: store.TemplateRepository(),
		threshold: information.DefaultThreshold,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.executor == nil {
		o.executor = logaction.NewExecutor(logger)
	}

	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	notifier := visibility.NewNotifier(o.publisher)
	scheduler := workflow.NewScheduler(store, logger)

	recorder := learning.NewRecorder(store, logger,
		learning.WithRecorderClock(o.now),
		learning.WithTemplateRepository(o.templates))

	lifecycleOpts := []workflow.LifecycleOption{
		workflow.WithLifecycleMirror(o.mirror),
		workflow.WithLifecycleNotifier(notifier),
		workflow.WithLifecycleClock(o.now),
	}
	if o.maxAttempts > 0 {
		lifecycleOpts = append(lifecycleOpts, workflow.WithMaxAttempts(o.maxAttempts))
	}

	infoOpts := []information.Option{
		information.WithThreshold(o.threshold),
		information.WithClock(o.now),
	}
	if o.memory != nil {
		infoOpts = append(infoOpts, information.WithMemoryProvider(o.memory))
	}

	if o.profiles != nil {
		infoOpts = append(infoOpts, information.WithProfileProvider(o.profiles))
	}

	var optimizerOpts []learning.OptimizerOption
	if o.minSkips > 0 {
		optimizerOpts = append(optimizerOpts, learning.WithMinSkips(o.minSkips))
	}

	if o.minConfidence > 0 {
		optimizerOpts = append(optimizerOpts, learning.WithMinConfidence(o.minConfidence))
	}

	return &Engine{
		store:     store,
		templates: o.templates,
		detector:  trigger.NewDetector(catalog.NewRegistry(o.templates, logger), o.secondary, logger),
		generator: workflow.NewGenerator(store, scheduler, logger,
			workflow.WithMirror(o.mirror),
			workflow.WithGenerationNotifier(notifier),
			workflow.WithSkipThreshold(o.threshold),
			workflow.WithGeneratorClock(o.now)),
		scheduler:   scheduler,
		lifecycle:   workflow.NewLifecycle(store, recorder, logger, lifecycleOpts...),
		information: information.NewOrchestrator(store, logger, infoOpts...),
		recorder:    recorder,
		optimizer:   learning.NewOptimizer(store, logger, optimizerOpts...),
		executor:    o.executor,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		tracer:      o.tracer,
		now:         o.now,
		logger:      logger.With("module", "engine"),
	}
}

// trace runs fn inside a span and records its error on the span.
func (e *Engine) trace(ctx context.Context, name string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, name, attrs...)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		otelhelper.SetError(span, err, attrs...)
	}

	return err
}

func (e *Engine) check(value any) error {
	err := e.validate.Struct(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return nil
}

// SaveTemplate stores a template after checking its fields and step structure.
func (e *Engine) SaveTemplate(ctx context.Context, template *models.WorkflowTemplate) error {
	return e.trace(ctx, "engine.SaveTemplate", func(ctx context.Context) error {
		if template.ID == "" {
			template.ID = uuid.New().String()
		}

		now := e.now().UTC()
		if template.CreatedAt.IsZero() {
			template.CreatedAt = now
		}

		template.UpdatedAt = now

		err := e.check(template)
		if err != nil {
			return err
		}

		_, err = catalog.ParseStructure(template.Structure)
		if err != nil {
			return err
		}

		return e.templates.Save(ctx, template)
	}, attribute.String(otelhelper.TemplateNameKey, template.Name))
}

// GetTemplate returns a stored template, or the built-in one for its id.
func (e *Engine) GetTemplate(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	if id == models.BuiltinSchedulingTemplateID {
		return catalog.DefaultSchedulingTemplate(), nil
	}

	var template *models.WorkflowTemplate

	err := e.trace(ctx, "engine.GetTemplate", func(ctx context.Context) error {
		var err error

		template, err = e.templates.GetByID(ctx, id)

		return err
	}, attribute.String(otelhelper.TemplateIDKey, id))

	return template, err
}

// DetectWorkflowNeed returns the template the text calls for, or nil when no workflow is needed.
func (e *Engine) DetectWorkflowNeed(ctx context.Context, text string, detectContext trigger.Context) (*models.WorkflowTemplate, error) {
	var template *models.WorkflowTemplate

	err := e.trace(ctx, "engine.DetectWorkflowNeed", func(ctx context.Context) error {
		var err error

		template, err = e.detector.Detect(ctx, text, detectContext)
		if template != nil {
			trace.SpanFromContext(ctx).SetAttributes(attribute.String(otelhelper.CategoryKey, string(template.Category)))
		}

		return err
	})

	return template, err
}

// GenerateWorkflow instantiates template for a conversation.
func (e *Engine) GenerateWorkflow(ctx context.Context, template *models.WorkflowTemplate, input workflow.Input) (*workflow.Generation, error) {
	var generation *workflow.Generation

	err := e.trace(ctx, "engine.GenerateWorkflow", func(ctx context.Context) error {
		if template == nil {
			return fmt.Errorf("%w: template is required", ErrInvalidInput)
		}

		err := e.check(input)
		if err != nil {
			return err
		}

		generation, err = e.generator.Generate(ctx, template, input)

		return err
	}, attribute.String(otelhelper.ConversationIDKey, input.ConversationID))

	return generation, err
}

// WorkflowState is a workflow with its tasks in creation order.
type WorkflowState struct {
	Workflow *models.Workflow       `json:"workflow"`
	Tasks    []*models.WorkflowTask `json:"tasks"`
}

// GetWorkflow returns a workflow with its tasks.
func (e *Engine) GetWorkflow(ctx context.Context, workflowID string) (*WorkflowState, error) {
	var state *WorkflowState

	err := e.trace(ctx, "engine.GetWorkflow", func(ctx context.Context) error {
		wf, err := e.store.WorkflowRepository().GetByID(ctx, workflowID)
		if err != nil {
			return err
		}

		tasks, err := e.store.TaskRepository().ListByWorkflow(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}

		state = &WorkflowState{Workflow: wf, Tasks: tasks}

		return nil
	}, attribute.String(otelhelper.WorkflowIDKey, workflowID))

	return state, err
}

// GetNextTask returns the next runnable task, or nil when none is.
func (e *Engine) GetNextTask(ctx context.Context, workflowID string) (*models.WorkflowTask, error) {
	var task *models.WorkflowTask

	err := e.trace(ctx, "engine.GetNextTask", func(ctx context.Context) error {
		_, err := e.store.WorkflowRepository().GetByID(ctx, workflowID)
		if err != nil {
			return err
		}

		task, err = e.scheduler.NextTask(ctx, workflowID)

		return err
	}, attribute.String(otelhelper.WorkflowIDKey, workflowID))

	return task, err
}

// ClaimNextTask activates the next runnable pending task, or returns nil when none is.
func (e *Engine) ClaimNextTask(ctx context.Context, workflowID string) (*models.WorkflowTask, error) {
	var task *models.WorkflowTask

	err := e.trace(ctx, "engine.ClaimNextTask", func(ctx context.Context) error {
		wf, err := e.store.WorkflowRepository().GetByID(ctx, workflowID)
		if err != nil {
			return err
		}

		if wf.Status.IsTerminal() {
			return &workflow.TransitionError{
				Entity: "workflow", ID: workflowID, From: string(wf.Status), To: string(models.WorkflowStatusActive),
			}
		}

		task, err = e.scheduler.Claim(ctx, workflowID)

		return err
	}, attribute.String(otelhelper.WorkflowIDKey, workflowID))

	return task, err
}

// CompleteTask stores data on the task and completes it.
func (e *Engine) CompleteTask(ctx context.Context, taskID string, data map[string]any) (*models.WorkflowTask, error) {
	var task *models.WorkflowTask

	err := e.trace(ctx, "engine.CompleteTask", func(ctx context.Context) error {
		var err error

		task, err = e.lifecycle.CompleteTask(ctx, taskID, data)

		return err
	}, attribute.String(otelhelper.TaskIDKey, taskID))

	return task, err
}

// FailTask records a failed attempt of the task.
func (e *Engine) FailTask(ctx context.Context, taskID, reason string) (*models.WorkflowTask, error) {
	var task *models.WorkflowTask

	err := e.trace(ctx, "engine.FailTask", func(ctx context.Context) error {
		var err error

		task, err = e.lifecycle.FailTask(ctx, taskID, reason)

		return err
	}, attribute.String(otelhelper.TaskIDKey, taskID))

	return task, err
}

// CancelWorkflow abandons a workflow that has not finished.
func (e *Engine) CancelWorkflow(ctx context.Context, workflowID, reason string) error {
	return e.trace(ctx, "engine.CancelWorkflow", func(ctx context.Context) error {
		return e.lifecycle.CancelWorkflow(ctx, workflowID, reason)
	}, attribute.String(otelhelper.WorkflowIDKey, workflowID))
}

// IdentifyMissingInfo lists what the task still needs, with any values found for it.
func (e *Engine) IdentifyMissingInfo(ctx context.Context, workflowID, taskID string) ([]models.InfoRequirement, error) {
	var requirements []models.InfoRequirement

	err := e.trace(ctx, "engine.IdentifyMissingInfo", func(ctx context.Context) error {
		var err error

		requirements, err = e.information.IdentifyMissingInfo(ctx, workflowID, taskID)

		return err
	}, attribute.String(otelhelper.WorkflowIDKey, workflowID), attribute.String(otelhelper.TaskIDKey, taskID))

	return requirements, err
}

// GeneratePrompt phrases a question for one requirement.
func (e *Engine) GeneratePrompt(ctx context.Context, requirement models.InfoRequirement, promptContext information.PromptContext) models.Prompt {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "engine.GeneratePrompt", attribute.String(otelhelper.FieldKey, requirement.Field))
	defer span.End()

	return e.information.GeneratePrompt(requirement, promptContext)
}

// GeneratePrompts phrases questions for several requirements, asking for
// related date and time fields together.
func (e *Engine) GeneratePrompts(ctx context.Context, requirements []models.InfoRequirement, promptContext information.PromptContext) []models.Prompt {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "engine.GeneratePrompts", attribute.Int("flowpilot.requirements", len(requirements)))
	defer span.End()

	return e.information.GeneratePrompts(requirements, promptContext)
}

// ValidateInfo checks and normalizes one answer. Problems are reported in the result, never as errors.
func (e *Engine) ValidateInfo(ctx context.Context, value any, requirement models.InfoRequirement) models.ValidationResult {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "engine.ValidateInfo", attribute.String(otelhelper.FieldKey, requirement.Field))
	defer span.End()

	result := e.information.ValidateInfo(value, requirement)
	span.SetAttributes(attribute.Bool("flowpilot.valid", result.Valid))

	return result
}

// DetermineStrategy decides how to continue with the data collected so far.
func (e *Engine) DetermineStrategy(ctx context.Context, workflowID string, collected map[string]any, opts information.StrategyOptions) (*information.StrategyDecision, error) {
	var decision *information.StrategyDecision

	err := e.trace(ctx, "engine.DetermineStrategy", func(ctx context.Context) error {
		var err error

		decision, err = e.information.DetermineStrategy(ctx, workflowID, collected, opts)
		if err == nil {
			trace.SpanFromContext(ctx).SetAttributes(attribute.String(otelhelper.StrategyKey, string(decision.Strategy)))
		}

		return err
	}, attribute.String(otelhelper.WorkflowIDKey, workflowID))

	return decision, err
}

// RecordOutcome finishes the workflow and folds the outcome into the learning data.
func (e *Engine) RecordOutcome(ctx context.Context, workflowID string, success bool, feedback *models.Feedback) error {
	return e.trace(ctx, "engine.RecordOutcome", func(ctx context.Context) error {
		if feedback != nil {
			err := e.check(feedback)
			if err != nil {
				return err
			}
		}

		return e.recorder.RecordOutcome(ctx, workflowID, success, feedback)
	}, attribute.String(otelhelper.WorkflowIDKey, workflowID), attribute.Bool("flowpilot.success", success))
}

// SuggestOptimizations returns advisory changes to the workflow's template. Nothing is applied.
func (e *Engine) SuggestOptimizations(ctx context.Context, workflowID string) ([]models.Optimization, error) {
	var suggestions []models.Optimization

	err := e.trace(ctx, "engine.SuggestOptimizations", func(ctx context.Context) error {
		var err error

		suggestions, err = e.optimizer.SuggestOptimizations(ctx, workflowID)

		return err
	}, attribute.String(otelhelper.WorkflowIDKey, workflowID))

	return suggestions, err
}

// ExecutionReport is the outcome of running an execute task.
type ExecutionReport struct {
	Result *models.ActionResult `json:"result"`
	Task   *models.WorkflowTask `json:"task"`
}

// ExecuteTask hands an execute task to the action executor and completes or
// fails it from the result. An unreachable executor counts as a failed attempt.
func (e *Engine) ExecuteTask(ctx context.Context, taskID string) (*ExecutionReport, error) {
	var report *ExecutionReport

	err := e.trace(ctx, "engine.ExecuteTask", func(ctx context.Context) error {
		var err error

		report, err = e.executeTask(ctx, taskID)

		return err
	}, attribute.String(otelhelper.TaskIDKey, taskID))

	return report, err
}

func (e *Engine) executeTask(ctx context.Context, taskID string) (*ExecutionReport, error) {
	task, err := e.store.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Kind != models.StepKindExecute {
		return nil, fmt.Errorf("%w: task %s is a %s step", workflow.ErrTaskNotExecutable, taskID, task.Kind)
	}

	if !task.IsOpen() {
		return nil, &workflow.TransitionError{
			Entity: "task", ID: taskID, From: string(task.Status), To: string(models.TaskStatusCompleted),
		}
	}

	wf, err := e.store.WorkflowRepository().GetByID(ctx, task.WorkflowID)
	if err != nil {
		return nil, err
	}

	collected, err := e.information.CollectedData(ctx, wf)
	if err != nil {
		return nil, err
	}

	payload := maps.Clone(collected)
	maps.Copy(payload, task.DataCollected)

	if task.Timezone != "" {
		payload["timezone"] = task.Timezone
	}

	actionType := task.ActionType
	if actionType == "" {
		actionType = task.StepID
	}

	descriptor := models.ActionDescriptor{
		Type:           actionType,
		Payload:        payload,
		WorkflowID:     wf.ID,
		TaskID:         task.ID,
		ConversationID: wf.ConversationID,
		UserID:         wf.UserID,
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(otelhelper.ActionTypeKey, actionType),
		attribute.String(otelhelper.StepIDKey, task.StepID),
	)

	logger := log.FromContext(ctx, e.logger).With("workflow_id", wf.ID, "task_id", task.ID, "action_type", actionType)

	result, err := e.executor.Execute(ctx, descriptor)
	if err != nil {
		logger.WarnContext(ctx, "Action executor failed", "error", err)

		result = &models.ActionResult{Success: false, Error: err.Error()}
	}

	e.logExecution(ctx, logger, descriptor, result)

	report := &ExecutionReport{Result: result}

	if result.Success {
		report.Task, err = e.lifecycle.CompleteTask(ctx, task.ID, result.Data)
	} else {
		reason := result.Error
		if reason == "" {
			reason = "action " + actionType + " failed"
		}

		report.Task, err = e.lifecycle.FailTask(ctx, task.ID, reason)
	}

	if err != nil {
		return nil, err
	}

	return report, nil
}

func (e *Engine) logExecution(ctx context.Context, logger *slog.Logger, descriptor models.ActionDescriptor, result *models.ActionResult) {
	input := map[string]any{"type": descriptor.Type, "success": result.Success}
	if result.Error != "" {
		input["error"] = result.Error
	}

	if result.Data != nil {
		input["data"] = result.Data
	}

	err := e.store.ExecutionRepository().Append(ctx, &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: descriptor.WorkflowID,
		TaskID:     &descriptor.TaskID,
		Action:     models.ActionActionExecuted,
		Actor:      models.ActorSystem,
		Input:      input,
		CreatedAt:  e.now().UTC(),
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to append execution log", "error", err)
	}
}
