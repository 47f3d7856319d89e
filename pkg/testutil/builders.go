// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/persistence/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewFilePersistence returns a file-backed store rooted in a per-test temporary directory.
func NewFilePersistence(t *testing.T) *file.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir())
}

// CreateTestTemplate creates a WorkflowTemplate with default values that can be overridden.
func CreateTestTemplate(t *testing.T, steps []models.StepDefinition, overrides ...func(*models.WorkflowTemplate)) *models.WorkflowTemplate {
	t.Helper()

	structure, err := json.Marshal(steps)
	require.NoError(t, err)

	now := time.Now().UTC()
	template := &models.WorkflowTemplate{
		ID:          uuid.New().String(),
		Name:        "Test Template",
		Category:    models.CategoryScheduling,
		Structure:   string(structure),
		SuccessRate: 50,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, override := range overrides {
		override(template)
	}

	return template
}

// WithCategory sets the template category.
func WithCategory(category models.Category) func(*models.WorkflowTemplate) {
	return func(t *models.WorkflowTemplate) {
		t.Category = category
	}
}

// WithCapabilities sets the template's required capabilities.
func WithCapabilities(capabilities ...string) func(*models.WorkflowTemplate) {
	return func(t *models.WorkflowTemplate) {
		t.RequiredCapabilities = capabilities
	}
}

// WithSuccessRate sets the template success rate.
func WithSuccessRate(rate float64) func(*models.WorkflowTemplate) {
	return func(t *models.WorkflowTemplate) {
		t.SuccessRate = rate
	}
}

// GatherStep creates a gather step collecting fields.
func GatherStep(id string, fields []string, dependsOn ...string) models.StepDefinition {
	return models.StepDefinition{
		ID:             id,
		Kind:           models.StepKindGather,
		Title:          id,
		RequiredFields: fields,
		DependsOn:      dependsOn,
	}
}

// ExecuteStep creates an execute step.
func ExecuteStep(id string, dependsOn ...string) models.StepDefinition {
	return models.StepDefinition{
		ID:        id,
		Kind:      models.StepKindExecute,
		Title:     id,
		DependsOn: dependsOn,
	}
}

// ChainedSchedulingSteps mirrors the shape of the built-in scheduling template.
func ChainedSchedulingSteps() []models.StepDefinition {
	book := ExecuteStep("book_meeting", "confirm_details")
	book.Critical = true
	book.RetryOnFailure = true

	attendees := GatherStep("gather_attendees", []string{"attendees"})
	attendees.Critical = true

	datetime := GatherStep("gather_datetime", []string{"startTime", "endTime"}, "gather_attendees")
	datetime.Critical = true

	return []models.StepDefinition{
		attendees,
		datetime,
		ExecuteStep("check_availability", "gather_datetime"),
		{ID: "confirm_details", Kind: models.StepKindConfirm, Title: "confirm_details", DependsOn: []string{"check_availability"}},
		book,
	}
}

// CreateWorkflow stores an active workflow bound to conversation "conv-1" and user "user-1".
func CreateWorkflow(t *testing.T, store persistence.Persistence, overrides ...func(*models.Workflow)) *models.Workflow {
	t.Helper()

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:             uuid.New().String(),
		TemplateName:   "Test Template",
		Category:       models.CategoryScheduling,
		ConversationID: "conv-1",
		UserID:         "user-1",
		Status:         models.WorkflowStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, override := range overrides {
		override(workflow)
	}

	require.NoError(t, store.WorkflowRepository().Create(context.Background(), workflow))

	return workflow
}

// CreateTask stores a pending gather task in the workflow.
func CreateTask(t *testing.T, store persistence.Persistence, workflowID string, overrides ...func(*models.WorkflowTask)) *models.WorkflowTask {
	t.Helper()

	task := &models.WorkflowTask{
		ID:            uuid.New().String(),
		WorkflowID:    workflowID,
		StepID:        "step-" + uuid.New().String()[:8],
		Kind:          models.StepKindGather,
		Status:        models.TaskStatusPending,
		DataCollected: map[string]any{},
		CreatedAt:     time.Now().UTC(),
	}

	for _, override := range overrides {
		override(task)
	}

	require.NoError(t, store.TaskRepository().Create(context.Background(), task))

	return task
}
