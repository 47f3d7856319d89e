package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSteps indicates a template whose structure declares no steps.
	ErrNoSteps = errors.New("template has no steps")

	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTaskNotExecutable indicates an attempt to run a task that is not an open execute task.
	ErrTaskNotExecutable = errors.New("task is not executable")
)

// DependencyError reports a dependency edge that could not be persisted. The
// workflow continues without the edge.
type DependencyError struct {
	TaskID          string
	DependsOnTaskID string
	StepID          string
	DependsOnStepID string
	Err             error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("failed to link step %s to %s (task %s -> %s): %v",
		e.StepID, e.DependsOnStepID, e.TaskID, e.DependsOnTaskID, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// TransitionError wraps ErrInvalidTransition with the states involved.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsInvalidTransition checks if an error reports a disallowed status change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
