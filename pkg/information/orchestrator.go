// Package information decides what a task still needs, how to ask for it, and
// whether collected answers are valid.
package information

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/providers"
)

// Orchestrator identifies missing information, phrases prompts, validates
// answers and picks a strategy for partial data.
type Orchestrator struct {
	workflows persistence.WorkflowRepository
	tasks     persistence.TaskRepository
	templates persistence.TemplateRepository
	memory    providers.MemoryProvider
	profiles  providers.ProfileProvider
	threshold float64
	validator *Validator
	prompts   *PromptGenerator
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMemoryProvider sets where conversation memory is read from. Without one the
// workflow's memory snapshot is used.
func WithMemoryProvider(memory providers.MemoryProvider) Option {
	return func(o *Orchestrator) { o.memory = memory }
}

// WithProfileProvider sets where user profiles are read from.
func WithProfileProvider(profiles providers.ProfileProvider) Option {
	return func(o *Orchestrator) { o.profiles = profiles }
}

// WithThreshold overrides DefaultThreshold.
func WithThreshold(threshold float64) Option {
	return func(o *Orchestrator) { o.threshold = threshold }
}

// WithClock sets the clock used by date validation.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.validator = NewValidator(now) }
}

// WithRandom sets the source used to pick friendly phrases.
func WithRandom(intN func(n int) int) Option {
	return func(o *Orchestrator) { o.prompts = NewPromptGenerator(intN) }
}

// NewOrchestrator creates an orchestrator over the store.
func NewOrchestrator(store persistence.Persistence, logger *slog.Logger, opts ...Option) *Orchestrator {
	orchestrator := &Orchestrator{
		workflows: store.WorkflowRepository(),
		tasks:     store.TaskRepository(),
		templates: store.TemplateRepository(),
		threshold: DefaultThreshold,
		validator: NewValidator(time.Now),
		prompts:   NewPromptGenerator(rand.IntN),
		logger:    logger.With("module", "information"),
	}

	for _, opt := range opts {
		opt(orchestrator)
	}

	return orchestrator
}

// Threshold is the confidence a value needs before a field counts as known.
func (o *Orchestrator) Threshold() float64 {
	return o.threshold
}

// IdentifyMissingInfo returns one requirement per prerequisite field of the task
// that no source can answer with enough confidence. Each requirement carries the
// best partial value found, if any.
func (o *Orchestrator) IdentifyMissingInfo(ctx context.Context, workflowID, taskID string) ([]models.InfoRequirement, error) {
	workflow, err := o.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	task, err := o.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.WorkflowID != workflowID {
		return nil, persistence.NewTaskError("IdentifyMissingInfo", taskID,
			fmt.Errorf("%w in workflow %s", persistence.ErrTaskNotFound, workflowID))
	}

	collected, err := o.CollectedData(ctx, workflow)
	if err != nil {
		return nil, err
	}

	maps.Copy(collected, task.DataCollected)

	memory := o.recentMemory(ctx, workflow)
	profile := o.profile(ctx, workflow)

	missing := make([]models.InfoRequirement, 0)

	for _, field := range task.Prerequisites {
		if value, ok := collected[field]; ok && !isEmpty(value) {
			continue
		}

		requirement := NewRequirement(field, task.ValidationRules[field])

		best, found := o.lookup(field, memory, profile, workflow.Context)
		if found && best.Confidence >= o.threshold {
			continue
		}

		if found {
			requirement.Value = best.Value
			requirement.Provenance = best.Provenance
			requirement.Confidence = best.Confidence
		}

		missing = append(missing, requirement)
	}

	o.logger.DebugContext(ctx, "Identified missing information",
		"workflow_id", workflowID, "task_id", taskID, "missing", len(missing))

	return missing, nil
}

// CollectedData merges the workflow's existing data with the data of its completed tasks.
func (o *Orchestrator) CollectedData(ctx context.Context, workflow *models.Workflow) (map[string]any, error) {
	collected := maps.Clone(workflow.Context.ExistingData)
	if collected == nil {
		collected = make(map[string]any)
	}

	completed, err := o.tasks.ListByWorkflow(ctx, workflow.ID, models.TaskStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed tasks: %w", err)
	}

	for _, task := range completed {
		maps.Copy(collected, task.DataCollected)
	}

	return collected, nil
}

// lookup searches memory, then profile, then inference, stopping at the first
// source confident enough.
func (o *Orchestrator) lookup(field string, memory []models.MemoryEntry, profile map[string]any, workflowContext models.WorkflowContext) (Sourced, bool) {
	var (
		best  Sourced
		found bool
	)

	candidates := []func() (Sourced, bool){
		func() (Sourced, bool) {
			value, ok := fromMemory(field, memory, false)
			return Sourced{Value: value, Provenance: models.ProvenanceMemory, Confidence: memoryConfidence}, ok
		},
		func() (Sourced, bool) {
			value, ok := fromProfile(field, profile)
			return Sourced{Value: value, Provenance: models.ProvenanceProfile, Confidence: profileConfidence}, ok
		},
		func() (Sourced, bool) {
			value, ok := inferValue(field, workflowContext)
			return Sourced{Value: value, Provenance: models.ProvenanceInference, Confidence: inferenceConfidence}, ok
		},
	}

	for _, candidate := range candidates {
		sourced, ok := candidate()
		if !ok {
			continue
		}

		if !found || sourced.Confidence > best.Confidence {
			best, found = sourced, true
		}

		if sourced.Confidence >= o.threshold {
			return sourced, true
		}
	}

	return best, found
}

func (o *Orchestrator) recentMemory(ctx context.Context, workflow *models.Workflow) []models.MemoryEntry {
	if o.memory != nil && workflow.ConversationID != "" {
		entries, err := o.memory.RecentMemories(ctx, workflow.ConversationID, recentMemoryLimit)
		if err == nil {
			return providers.Recent(entries, recentMemoryLimit)
		}

		o.logger.WarnContext(ctx, "Memory provider failed, using workflow snapshot",
			"conversation_id", workflow.ConversationID, "error", err)
	}

	return providers.Recent(workflow.Context.Memory, recentMemoryLimit)
}

func (o *Orchestrator) profile(ctx context.Context, workflow *models.Workflow) map[string]any {
	if o.profiles == nil || workflow.UserID == "" {
		return nil
	}

	profile, err := o.profiles.Profile(ctx, workflow.UserID)
	if err != nil {
		o.logger.WarnContext(ctx, "Profile provider failed", "user_id", workflow.UserID, "error", err)

		return nil
	}

	return profile
}

// GeneratePrompt phrases a question for one requirement.
func (o *Orchestrator) GeneratePrompt(requirement models.InfoRequirement, promptContext PromptContext) models.Prompt {
	return o.prompts.Generate(requirement, promptContext)
}

// GeneratePrompts phrases questions for several requirements, merging related date and time fields.
func (o *Orchestrator) GeneratePrompts(requirements []models.InfoRequirement, promptContext PromptContext) []models.Prompt {
	return o.prompts.GenerateAll(requirements, promptContext)
}

// ValidateInfo validates and normalizes one value. It never fails; problems are reported in the result.
func (o *Orchestrator) ValidateInfo(value any, requirement models.InfoRequirement) models.ValidationResult {
	return o.validator.Validate(value, requirement)
}
