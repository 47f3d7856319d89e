package learning

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
)

const (
	defaultMinSkips       = 3
	defaultMinConfidence  = 70.0
	parallelizeConfidence = 80.0
)

// Optimizer derives read-only suggestions from execution history and learning data.
type Optimizer struct {
	workflows     persistence.WorkflowRepository
	tasks         persistence.TaskRepository
	dependencies  persistence.DependencyRepository
	executions    persistence.ExecutionRepository
	patterns      persistence.LearningRepository
	minSkips      int
	minConfidence float64
	logger        *slog.Logger
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

// WithMinSkips sets how many skips across a template's runs make a step a removal candidate.
func WithMinSkips(skips int) OptimizerOption {
	return func(o *Optimizer) { o.minSkips = skips }
}

// WithMinConfidence sets the confidence a pattern needs before it is surfaced.
func WithMinConfidence(confidence float64) OptimizerOption {
	return func(o *Optimizer) { o.minConfidence = confidence }
}

// NewOptimizer creates an optimizer over the store.
func NewOptimizer(store persistence.Persistence, logger *slog.Logger, opts ...OptimizerOption) *Optimizer {
	optimizer := &Optimizer{
		workflows:     store.WorkflowRepository(),
		tasks:         store.TaskRepository(),
		dependencies:  store.DependencyRepository(),
		executions:    store.ExecutionRepository(),
		patterns:      store.LearningRepository(),
		minSkips:      defaultMinSkips,
		minConfidence: defaultMinConfidence,
		logger:        logger.With("module", "optimizer"),
	}

	for _, opt := range opts {
		opt(optimizer)
	}

	return optimizer
}

// SuggestOptimizations inspects the runs of the workflow's template. Nothing is applied.
func (o *Optimizer) SuggestOptimizations(ctx context.Context, workflowID string) ([]models.Optimization, error) {
	workflow, err := o.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	// An empty id selects the runs of the built-in template.
	templateID := ""
	if workflow.TemplateID != nil {
		templateID = *workflow.TemplateID
	}

	runs, err := o.workflows.ListByTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list template runs: %w", err)
	}

	if len(runs) == 0 {
		runs = []*models.Workflow{workflow}
	}

	suggestions := make([]models.Optimization, 0)

	removals, err := o.removals(ctx, runs)
	if err != nil {
		return nil, err
	}

	suggestions = append(suggestions, removals...)

	parallel, err := o.parallelizable(ctx, runs[0].ID)
	if err != nil {
		return nil, err
	}

	suggestions = append(suggestions, parallel...)

	adjustments, err := o.adjustments(ctx, workflow.TemplateKey())
	if err != nil {
		return nil, err
	}

	suggestions = append(suggestions, adjustments...)

	o.logger.DebugContext(ctx, "Suggested optimizations", "workflow_id", workflowID, "runs", len(runs), "suggestions", len(suggestions))

	return suggestions, nil
}

// removals proposes dropping steps that were skipped at least minSkips times.
func (o *Optimizer) removals(ctx context.Context, runs []*models.Workflow) ([]models.Optimization, error) {
	skips := make(map[string]int)

	for _, run := range runs {
		entries, err := o.executions.ListByWorkflow(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read execution log: %w", err)
		}

		for _, entry := range entries {
			if entry.Action != models.ActionTaskSkipped {
				continue
			}

			if stepID, ok := entry.Input["step_id"].(string); ok {
				skips[stepID]++
			}
		}
	}

	var suggestions []models.Optimization

	for _, stepID := range slices.Sorted(maps.Keys(skips)) {
		count := skips[stepID]
		if count < o.minSkips {
			continue
		}

		suggestions = append(suggestions, models.Optimization{
			Type:       models.OptimizationRemoveStep,
			StepIDs:    []string{stepID},
			Data:       map[string]any{"skip_count": count, "runs": len(runs)},
			Reason:     fmt.Sprintf("Step %s was skipped in %d of %d runs because its information was already known", stepID, count, len(runs)),
			Confidence: min(100*float64(count)/float64(len(runs)), 100),
		})
	}

	return suggestions, nil
}

// parallelizable flags task pairs of one run with no direct or transitive dependency between them.
func (o *Optimizer) parallelizable(ctx context.Context, workflowID string) ([]models.Optimization, error) {
	tasks, err := o.tasks.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	edges, err := o.dependencies.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}

	graph := make(map[string][]string, len(tasks))
	for _, edge := range edges {
		graph[edge.TaskID] = append(graph[edge.TaskID], edge.DependsOnTaskID)
	}

	var suggestions []models.Optimization

	for i, a := range tasks {
		for _, b := range tasks[i+1:] {
			if reaches(graph, a.ID, b.ID) || reaches(graph, b.ID, a.ID) {
				continue
			}

			suggestions = append(suggestions, models.Optimization{
				Type:       models.OptimizationParallelize,
				StepIDs:    []string{a.StepID, b.StepID},
				TaskIDs:    []string{a.ID, b.ID},
				Reason:     fmt.Sprintf("Steps %s and %s do not depend on each other and could run in parallel", a.StepID, b.StepID),
				Confidence: parallelizeConfidence,
			})
		}
	}

	return suggestions, nil
}

// reaches reports whether from depends, directly or transitively, on to.
func reaches(graph map[string][]string, from, to string) bool {
	visited := map[string]bool{from: true}
	stack := []string{from}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, next := range graph[current] {
			if next == to {
				return true
			}

			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}

	return false
}

// adjustments surfaces confident learning patterns as behaviour tweaks.
func (o *Optimizer) adjustments(ctx context.Context, templateKey string) ([]models.Optimization, error) {
	patterns, err := o.patterns.ListByTemplate(ctx, templateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list learning patterns: %w", err)
	}

	var suggestions []models.Optimization

	for _, pattern := range patterns {
		if pattern.Confidence <= o.minConfidence {
			continue
		}

		suggestions = append(suggestions, models.Optimization{
			Type:        models.OptimizationAdjustBehavior,
			PatternType: pattern.PatternType,
			Data:        pattern.PatternData,
			Reason: fmt.Sprintf("Pattern %s observed %d times with %d successes",
				pattern.PatternType, pattern.OccurrenceCount, pattern.SuccessCount),
			Confidence: pattern.Confidence,
		})
	}

	return suggestions, nil
}
