package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/flowpilot/pkg/actions"
	"github.com/dukex/flowpilot/pkg/actions/httpaction"
	"github.com/dukex/flowpilot/pkg/actions/logaction"
)

// NewActionRegistry builds the executor for execute tasks. Plugins found under
// pluginsPath register their own action types; every other action is POSTed to
// actionURL, or only logged when actionURL is empty.
func NewActionRegistry(logger *slog.Logger, actionURL, pluginsPath string) (*actions.Registry, error) {
	registry := actions.NewRegistry(logger)

	logExecutor := logaction.NewExecutor(logger)
	registry.Register("log", logExecutor)
	registry.SetFallback(logExecutor)

	if actionURL != "" {
		executor, err := httpaction.NewExecutor(actionURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP action executor: %w", err)
		}

		registry.SetFallback(executor)
	}

	if pluginsPath != "" {
		_, err := registry.LoadPlugins(pluginsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load action plugins: %w", err)
		}
	}

	return registry, nil
}
