// Package persistence provides the data storage abstraction for workflow orchestration.
package persistence

import (
	"context"

	"github.com/dukex/flowpilot/pkg/models"
)

// Persistence groups the repositories the engine reads and writes.
type Persistence interface {
	TemplateRepository() TemplateRepository
	WorkflowRepository() WorkflowRepository
	TaskRepository() TaskRepository
	DependencyRepository() DependencyRepository
	ExecutionRepository() ExecutionRepository
	LearningRepository() LearningRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// TemplateRepository reads the template catalog and updates rolling metrics.
type TemplateRepository interface {
	Save(ctx context.Context, template *models.WorkflowTemplate) error
	GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error)
	// ListActiveByCategory returns active templates ordered by success rate, highest first.
	ListActiveByCategory(ctx context.Context, category models.Category) ([]*models.WorkflowTemplate, error)
	UpdateSuccessRate(ctx context.Context, id string, rate float64) error
}

// WorkflowRepository stores workflow instances.
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// UpdateStatus moves a workflow from one status to another, failing with
	// ErrStatusConflict when the stored status is not from.
	UpdateStatus(ctx context.Context, id string, from, to models.WorkflowStatus) error
	// ListByTemplate returns the workflows of a template, newest first. An empty
	// templateID selects workflows generated from the built-in template.
	ListByTemplate(ctx context.Context, templateID string) ([]*models.Workflow, error)
	CountByTemplate(ctx context.Context, templateID string) (int, error)
}

// TaskRepository stores task nodes.
type TaskRepository interface {
	Create(ctx context.Context, task *models.WorkflowTask) error
	GetByID(ctx context.Context, id string) (*models.WorkflowTask, error)
	Update(ctx context.Context, task *models.WorkflowTask) error
	// ListByWorkflow returns tasks ordered by creation time. With no statuses every task is returned.
	ListByWorkflow(ctx context.Context, workflowID string, statuses ...models.TaskStatus) ([]*models.WorkflowTask, error)
	// TransitionStatus is a compare-and-set on the task status. It reports false
	// without error when the stored status was not from.
	TransitionStatus(ctx context.Context, id string, from, to models.TaskStatus) (bool, error)
}

// DependencyRepository stores dependency edges.
type DependencyRepository interface {
	Create(ctx context.Context, dependency *models.WorkflowDependency) error
	ListByTask(ctx context.Context, taskID string) ([]*models.WorkflowDependency, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowDependency, error)
}

// ExecutionRepository is the append-only execution log.
type ExecutionRepository interface {
	Append(ctx context.Context, execution *models.WorkflowExecution) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)
}

// LearningRepository stores scored behavioural patterns.
type LearningRepository interface {
	Find(ctx context.Context, templateID, patternType, patternKey string) (*models.WorkflowLearning, error)
	Save(ctx context.Context, learning *models.WorkflowLearning) error
	ListByTemplate(ctx context.Context, templateID string) ([]*models.WorkflowLearning, error)
}
