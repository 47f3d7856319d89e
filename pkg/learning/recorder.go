package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
)

// Recorder finalizes workflows: it logs the outcome, sets the terminal status,
// updates the template success rate and upserts the observed patterns.
type Recorder struct {
	workflows  persistence.WorkflowRepository
	tasks      persistence.TaskRepository
	templates  persistence.TemplateRepository
	executions persistence.ExecutionRepository
	patterns   persistence.LearningRepository
	now        func() time.Time
	logger     *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderClock overrides time.Now.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// WithTemplateRepository replaces the store's template repository, e.g. with a cached one.
func WithTemplateRepository(templates persistence.TemplateRepository) RecorderOption {
	return func(r *Recorder) { r.templates = templates }
}

// NewRecorder creates a recorder over the store.
func NewRecorder(store persistence.Persistence, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	recorder := &Recorder{
		workflows:  store.WorkflowRepository(),
		tasks:      store.TaskRepository(),
		templates:  store.TemplateRepository(),
		executions: store.ExecutionRepository(),
		patterns:   store.LearningRepository(),
		now:        time.Now,
		logger:     logger.With("module", "outcome_recorder"),
	}

	for _, opt := range opts {
		opt(recorder)
	}

	return recorder
}

type observation struct {
	patternType string
	data        map[string]any
}

// RecordOutcome moves the workflow to completed or failed and updates learning
// data. Only loading the workflow and changing its status can fail the call;
// the success rate and each pattern are updated independently and their
// failures are logged.
func (r *Recorder) RecordOutcome(ctx context.Context, workflowID string, success bool, feedback *models.Feedback) error {
	workflow, err := r.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	status, action := models.WorkflowStatusCompleted, models.ActionWorkflowCompleted
	if !success {
		status, action = models.WorkflowStatusFailed, models.ActionWorkflowFailed
	}

	if !workflow.Status.CanTransitionTo(status) {
		return persistence.NewWorkflowError("RecordOutcome", workflowID,
			fmt.Errorf("%w: %s cannot become %s", persistence.ErrStatusConflict, workflow.Status, status))
	}

	err = r.workflows.UpdateStatus(ctx, workflowID, workflow.Status, status)
	if err != nil {
		return fmt.Errorf("failed to finish workflow: %w", err)
	}

	logger := r.logger.With("workflow_id", workflowID, "success", success)
	logger.InfoContext(ctx, "Recording workflow outcome")

	r.logOutcome(ctx, logger, workflow, action, feedback)
	r.updateSuccessRate(ctx, logger, workflow, success)

	observations, err := r.observe(ctx, workflow)
	if err != nil {
		logger.WarnContext(ctx, "Failed to extract patterns", "error", err)

		return nil
	}

	var errs []error

	for _, obs := range observations {
		err := r.upsert(ctx, workflow.TemplateKey(), obs, success)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", obs.patternType, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		logger.WarnContext(ctx, "Failed to store some learning patterns", "error", err)
	}

	return nil
}

func (r *Recorder) logOutcome(ctx context.Context, logger *slog.Logger, workflow *models.Workflow, action string, feedback *models.Feedback) {
	input := map[string]any{}

	if feedback != nil {
		if feedback.Reason != "" {
			input["reason"] = feedback.Reason
		}

		if feedback.Rating != 0 {
			input["rating"] = feedback.Rating
		}

		if feedback.Comments != "" {
			input["comments"] = feedback.Comments
		}
	}

	err := r.executions.Append(ctx, &models.WorkflowExecution{
		ID:         uuid.New().String(),
		WorkflowID: workflow.ID,
		Action:     action,
		Actor:      models.ActorSystem,
		Input:      input,
		CreatedAt:  r.now().UTC(),
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to append outcome to execution log", "error", err)
	}
}

// updateSuccessRate folds the outcome into the owning template. The built-in template has no stored row.
func (r *Recorder) updateSuccessRate(ctx context.Context, logger *slog.Logger, workflow *models.Workflow, success bool) {
	if workflow.TemplateID == nil || *workflow.TemplateID == "" {
		return
	}

	templateID := *workflow.TemplateID

	runs, err := r.workflows.CountByTemplate(ctx, templateID)
	if err != nil {
		logger.WarnContext(ctx, "Failed to count template runs", "template_id", templateID, "error", err)

		return
	}

	template, err := r.templates.GetByID(ctx, templateID)
	if err != nil {
		logger.WarnContext(ctx, "Failed to load template", "template_id", templateID, "error", err)

		return
	}

	rate := UpdateSuccessRate(template.SuccessRate, runs, success)

	err = r.templates.UpdateSuccessRate(ctx, templateID, rate)
	if err != nil {
		logger.WarnContext(ctx, "Failed to update template success rate", "template_id", templateID, "error", err)

		return
	}

	logger.DebugContext(ctx, "Template success rate updated", "template_id", templateID, "rate", rate, "runs", runs)
}

// observe extracts up to two coarse patterns from a finished workflow: when a
// scheduling workflow was set for, and which fields were asked for.
func (r *Recorder) observe(ctx context.Context, workflow *models.Workflow) ([]observation, error) {
	tasks, err := r.tasks.ListByWorkflow(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	collected := maps.Clone(workflow.Context.ExistingData)
	if collected == nil {
		collected = make(map[string]any)
	}

	var fields []string

	for _, task := range tasks {
		maps.Copy(collected, task.DataCollected)

		if task.Kind == models.StepKindGather {
			for _, field := range task.Prerequisites {
				if !slices.Contains(fields, field) {
					fields = append(fields, field)
				}
			}
		}
	}

	var observations []observation

	if workflow.Category == models.CategoryScheduling {
		hour, weekday := scheduledSlot(collected, workflow.CreatedAt)
		observations = append(observations, observation{
			patternType: models.PatternSchedulingTimePreference,
			data: map[string]any{
				"time_of_day": timeOfDay(hour),
				"day_of_week": strings.ToLower(weekday.String()),
			},
		})
	}

	if len(fields) > 0 {
		slices.Sort(fields)
		observations = append(observations, observation{
			patternType: models.PatternDataCollectionEfficiency,
			data: map[string]any{
				"field_count": len(fields),
				"fields":      fields,
			},
		})
	}

	return observations, nil
}

// scheduledSlot reads the booked start time and date from the collected data,
// falling back to when the workflow was created. The exact keys "date" and
// "startTime" win; otherwise the first parseable key in sorted order is used.
func scheduledSlot(collected map[string]any, fallback time.Time) (int, time.Weekday) {
	hour, weekday := fallback.Hour(), fallback.Weekday()
	haveHour, haveDay := false, false

	keys := []string{"date", "startTime"}
	for _, key := range slices.Sorted(maps.Keys(collected)) {
		if key != "date" && key != "startTime" {
			keys = append(keys, key)
		}
	}

	for _, key := range keys {
		text, ok := collected[key].(string)
		if !ok {
			continue
		}

		name := strings.ToLower(key)

		switch {
		case !haveDay && strings.Contains(name, "date"):
			if date, err := time.Parse(time.DateOnly, text); err == nil {
				weekday, haveDay = date.Weekday(), true
			}
		case !haveHour && strings.Contains(name, "start"):
			if clock, err := time.Parse("15:04", text); err == nil {
				hour, haveHour = clock.Hour(), true
			}
		}
	}

	return hour, weekday
}

func timeOfDay(hour int) string {
	switch {
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

// upsert folds an observation into the learning row identified by its canonical JSON.
func (r *Recorder) upsert(ctx context.Context, templateKey string, obs observation, success bool) error {
	key, err := json.Marshal(obs.data)
	if err != nil {
		return fmt.Errorf("failed to encode pattern: %w", err)
	}

	now := r.now().UTC()

	pattern, err := r.patterns.Find(ctx, templateKey, obs.patternType, string(key))

	switch {
	case errors.Is(err, persistence.ErrLearningNotFound):
		pattern = &models.WorkflowLearning{
			ID:              uuid.New().String(),
			TemplateID:      templateKey,
			PatternType:     obs.patternType,
			PatternKey:      string(key),
			PatternData:     obs.data,
			Confidence:      InitialConfidence(success),
			OccurrenceCount: 1,
			FirstObserved:   now,
			LastObserved:    now,
		}
	case err != nil:
		return err
	default:
		pattern.Confidence = UpdateConfidence(pattern.Confidence, pattern.OccurrenceCount, success)
		pattern.OccurrenceCount++
		pattern.LastObserved = now
	}

	if success {
		pattern.SuccessCount++
	}

	return r.patterns.Save(ctx, pattern)
}
