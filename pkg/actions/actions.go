// Package actions dispatches execute tasks to the executors that perform their side effects.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/flowpilot/pkg/models"
)

// ErrNoExecutor is returned when no executor handles an action type.
var ErrNoExecutor = errors.New("no executor registered for action type")

// Executor performs the side effect an ActionDescriptor describes. A non-nil
// error means the executor could not be reached; a business failure is an
// ActionResult with Success false.
type Executor interface {
	Execute(ctx context.Context, descriptor models.ActionDescriptor) (*models.ActionResult, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, descriptor models.ActionDescriptor) (*models.ActionResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, descriptor models.ActionDescriptor) (*models.ActionResult, error) {
	return f(ctx, descriptor)
}

// Registry routes descriptors by action type. Lookup tries the exact type,
// then its namespace (the part before the first dot), then the fallback.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
	fallback  Executor
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		executors: make(map[string]Executor),
		logger:    logger.With("module", "action_registry"),
	}
}

// Register routes actionType, or a whole namespace such as "calendar", to executor.
func (r *Registry) Register(actionType string, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.executors[actionType] = executor
}

// SetFallback sets the executor used when nothing else matches.
func (r *Registry) SetFallback(executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fallback = executor
}

// Types lists the registered action types and namespaces.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.executors))
}

// Execute dispatches descriptor to its executor.
func (r *Registry) Execute(ctx context.Context, descriptor models.ActionDescriptor) (*models.ActionResult, error) {
	executor, ok := r.lookup(descriptor.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoExecutor, descriptor.Type)
	}

	r.logger.DebugContext(ctx, "Dispatching action", "type", descriptor.Type, "task_id", descriptor.TaskID)

	return executor.Execute(ctx, descriptor)
}

func (r *Registry) lookup(actionType string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if executor, ok := r.executors[actionType]; ok {
		return executor, true
	}

	if namespace, _, found := strings.Cut(actionType, "."); found {
		if executor, ok := r.executors[namespace]; ok {
			return executor, true
		}
	}

	return r.fallback, r.fallback != nil
}
