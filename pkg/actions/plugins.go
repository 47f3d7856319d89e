package actions

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"plugin"
)

// PluginSymbol is the symbol an executor plugin exports.
const PluginSymbol = "Executor"

// Plugin is the value exported by an executor plugin.
type Plugin interface {
	Executor
	ActionTypes() []string
}

// LoadPlugins opens every .so file below dir and registers the executor each
// one exports for the action types it declares. A missing dir loads nothing.
func (r *Registry) LoadPlugins(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}

	paths, err := fs.Glob(os.DirFS(dir), "*/*.so")
	if err != nil {
		return 0, fmt.Errorf("failed to list plugins in %s: %w", dir, err)
	}

	logger := r.logger.With("path", dir)
	logger.Info("Loading executor plugins", "count", len(paths))

	for _, path := range paths {
		loaded, err := openPlugin(filepath.Join(dir, path))
		if err != nil {
			return 0, err
		}

		for _, actionType := range loaded.ActionTypes() {
			r.Register(actionType, loaded)
		}

		logger.Info("Loaded executor plugin", "plugin", path, "action_types", loaded.ActionTypes())
	}

	return len(paths), nil
}

func openPlugin(path string) (Plugin, error) {
	plg, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin %s: %w", path, err)
	}

	symbol, err := plg.Lookup(PluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("plugin %s does not export %s: %w", path, PluginSymbol, err)
	}

	loaded, ok := symbol.(Plugin)
	if !ok {
		// Exported variables come back as pointers.
		if ptr, isPtr := symbol.(*Plugin); isPtr && ptr != nil {
			return *ptr, nil
		}

		return nil, fmt.Errorf("plugin %s exports %s with unexpected type %T", path, PluginSymbol, symbol)
	}

	return loaded, nil
}
