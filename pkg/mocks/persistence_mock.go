// Package mocks provides testify mocks of the persistence and event bus interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
)

// MockPersistence is a mock implementation of persistence.Persistence. The
// repository accessors return the embedded repositories when set.
type MockPersistence struct {
	mock.Mock

	Templates    persistence.TemplateRepository
	Workflows    persistence.WorkflowRepository
	Tasks        persistence.TaskRepository
	Dependencies persistence.DependencyRepository
	Executions   persistence.ExecutionRepository
	Learnings    persistence.LearningRepository
}

func (m *MockPersistence) TemplateRepository() persistence.TemplateRepository     { return m.Templates }
func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository     { return m.Workflows }
func (m *MockPersistence) TaskRepository() persistence.TaskRepository             { return m.Tasks }
func (m *MockPersistence) DependencyRepository() persistence.DependencyRepository { return m.Dependencies }
func (m *MockPersistence) ExecutionRepository() persistence.ExecutionRepository   { return m.Executions }
func (m *MockPersistence) LearningRepository() persistence.LearningRepository     { return m.Learnings }

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockTemplateRepository is a mock implementation of persistence.TemplateRepository.
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) Save(ctx context.Context, template *models.WorkflowTemplate) error {
	args := m.Called(ctx, template)

	return args.Error(0)
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowTemplate), args.Error(1)
}

func (m *MockTemplateRepository) ListActiveByCategory(ctx context.Context, category models.Category) ([]*models.WorkflowTemplate, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowTemplate), args.Error(1)
}

func (m *MockTemplateRepository) UpdateSuccessRate(ctx context.Context, id string, rate float64) error {
	args := m.Called(ctx, id, rate)

	return args.Error(0)
}

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) UpdateStatus(ctx context.Context, id string, from, to models.WorkflowStatus) error {
	args := m.Called(ctx, id, from, to)

	return args.Error(0)
}

func (m *MockWorkflowRepository) ListByTemplate(ctx context.Context, templateID string) ([]*models.Workflow, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) CountByTemplate(ctx context.Context, templateID string) (int, error) {
	args := m.Called(ctx, templateID)

	return args.Int(0), args.Error(1)
}
