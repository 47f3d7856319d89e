package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowpilot/pkg/models"
)

// TemplateSource lists the active templates of a category, highest success rate first.
type TemplateSource interface {
	ListActiveByCategory(ctx context.Context, category models.Category) ([]*models.WorkflowTemplate, error)
}

// Registry picks the best template for a category and the caller's capabilities.
type Registry struct {
	templates TemplateSource
	logger    *slog.Logger
}

// NewRegistry creates a registry over the given template source.
func NewRegistry(templates TemplateSource, logger *slog.Logger) *Registry {
	return &Registry{
		templates: templates,
		logger:    logger.With("module", "catalog"),
	}
}

// Find returns the highest success-rate active template of the category whose
// required capabilities the caller has.
//
// Scheduling never comes back empty: an empty catalog, a capability mismatch, a
// store error or a malformed best match all yield the built-in template. Other
// categories return nil when nothing matches and an error when the store or the
// matched template is broken.
//
// TODO: confirm with product whether the other categories should get a default
// template too instead of nil.
func (r *Registry) Find(ctx context.Context, category models.Category, capabilities []string) (*models.WorkflowTemplate, error) {
	templates, err := r.templates.ListActiveByCategory(ctx, category)
	if err != nil {
		if category == models.CategoryScheduling {
			r.logger.WarnContext(ctx, "Template lookup failed, using built-in scheduling template", "error", err)

			return DefaultSchedulingTemplate(), nil
		}

		return nil, fmt.Errorf("failed to list templates for category %s: %w", category, err)
	}

	for _, template := range templates {
		if !hasCapabilities(template.RequiredCapabilities, capabilities) {
			continue
		}

		if _, err := ParseStructure(template.Structure); err != nil {
			if category == models.CategoryScheduling {
				r.logger.WarnContext(ctx, "Stored scheduling template is malformed, using built-in template",
					"template_id", template.ID, "error", err)

				return DefaultSchedulingTemplate(), nil
			}

			return nil, fmt.Errorf("template %s: %w", template.ID, err)
		}

		return template, nil
	}

	if category == models.CategoryScheduling {
		r.logger.WarnContext(ctx, "No stored scheduling template matches, using built-in template",
			"candidates", len(templates), "capabilities", capabilities)

		return DefaultSchedulingTemplate(), nil
	}

	r.logger.DebugContext(ctx, "No template found", "category", category)

	return nil, nil
}
