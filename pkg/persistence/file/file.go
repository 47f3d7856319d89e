// Package file provides file-based persistence implementation for workflow orchestration.
package file

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/flowpilot/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Every entity is stored as one JSON document under <root>/<collection>/<id>.json.
type Persistence struct {
	store          *store
	templateRepo   *TemplateRepository
	workflowRepo   *WorkflowRepository
	taskRepo       *TaskRepository
	dependencyRepo *DependencyRepository
	executionRepo  *ExecutionRepository
	learningRepo   *LearningRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	s := &store{root: strings.Replace(root, "file://", "", 1)}

	return &Persistence{
		store:          s,
		templateRepo:   &TemplateRepository{store: s},
		workflowRepo:   &WorkflowRepository{store: s},
		taskRepo:       &TaskRepository{store: s},
		dependencyRepo: &DependencyRepository{store: s},
		executionRepo:  &ExecutionRepository{store: s},
		learningRepo:   &LearningRepository{store: s},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.store.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) TemplateRepository() persistence.TemplateRepository     { return fp.templateRepo }
func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository     { return fp.workflowRepo }
func (fp *Persistence) TaskRepository() persistence.TaskRepository             { return fp.taskRepo }
func (fp *Persistence) DependencyRepository() persistence.DependencyRepository { return fp.dependencyRepo }
func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository   { return fp.executionRepo }
func (fp *Persistence) LearningRepository() persistence.LearningRepository     { return fp.learningRepo }

const (
	templatesDir    = "templates"
	workflowsDir    = "workflows"
	tasksDir        = "tasks"
	dependenciesDir = "dependencies"
	executionsDir   = "executions"
	learningDir     = "learning"
)

var errRecordNotFound = errors.New("record not found")

// store serializes every read-modify-write so status transitions behave as compare-and-set.
type store struct {
	mu   sync.RWMutex
	root string
}

func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("id %q contains invalid characters", id)
	}

	return nil
}

func (s *store) path(collection, id string) string {
	return filepath.Clean(filepath.Join(s.root, collection, id+".json"))
}

func (s *store) write(collection, id string, record any) error {
	if err := validateID(id); err != nil {
		return err
	}

	err := os.MkdirAll(filepath.Join(s.root, collection), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", collection, id, err)
	}

	err = os.WriteFile(s.path(collection, id), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", collection, id, err)
	}

	return nil
}

func read[T any](s *store, collection, id string) (*T, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(s.path(collection, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errRecordNotFound
		}

		return nil, fmt.Errorf("failed to read %s %s: %w", collection, id, err)
	}

	var record T

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", collection, id, err)
	}

	return &record, nil
}

// list loads every record of a collection that satisfies keep.
func list[T any](s *store, collection string, keep func(*T) bool) ([]*T, error) {
	files, err := fs.Glob(os.DirFS(filepath.Join(s.root, collection)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", collection, err)
	}

	records := make([]*T, 0, len(files))

	for _, file := range files {
		record, err := read[T](s, collection, strings.TrimSuffix(file, ".json"))
		if err != nil {
			if errors.Is(err, errRecordNotFound) {
				continue
			}

			return nil, err
		}

		if keep == nil || keep(record) {
			records = append(records, record)
		}
	}

	return records, nil
}

func sortBy[T any, K cmp.Ordered](records []*T, key func(*T) K) {
	slices.SortStableFunc(records, func(a, b *T) int {
		return cmp.Compare(key(a), key(b))
	})
}
