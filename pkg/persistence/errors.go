// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrTemplateNotFound indicates a template was not found by the given identifier.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTaskNotFound indicates a task was not found by the given identifier.
	ErrTaskNotFound = errors.New("task not found")

	// ErrLearningNotFound indicates no learning row matches the pattern identity.
	ErrLearningNotFound = errors.New("learning pattern not found")

	// ErrStatusConflict indicates the stored status did not match the expected one.
	ErrStatusConflict = errors.New("status conflict")
)

// EntityError wraps repository errors with the operation and entity involved.
type EntityError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Create", "UpdateStatus")
	Entity string // Entity kind ("workflow", "task", ...)
	ID     string // Entity identifier if applicable
	Err    error  // Underlying error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for entity errors.
func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "workflow", ID: workflowID, Err: err}
}

// NewTaskError creates a new task error with context.
func NewTaskError(op, taskID string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "task", ID: taskID, Err: err}
}

// NewTemplateError creates a new template error with context.
func NewTemplateError(op, templateID string, err error) *EntityError {
	return &EntityError{Op: op, Entity: "template", ID: templateID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsTaskNotFound checks if an error indicates a task was not found.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsTemplateNotFound checks if an error indicates a template was not found.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsNotFound checks if an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return IsWorkflowNotFound(err) || IsTaskNotFound(err) || IsTemplateNotFound(err) ||
		errors.Is(err, ErrLearningNotFound)
}

// IsStatusConflict checks if an error indicates a failed compare-and-set.
func IsStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict)
}
