package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "flowpilot:templates:"

// CachedTemplates is a read-through Redis cache in front of a template repository.
// Category listings are cached for ttl and dropped whenever a success rate changes.
type CachedTemplates struct {
	persistence.TemplateRepository

	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedTemplates wraps repository with a Redis cache.
func NewCachedTemplates(repository persistence.TemplateRepository, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedTemplates {
	return &CachedTemplates{
		TemplateRepository: repository,
		client:             client,
		ttl:                ttl,
		logger:             logger.With("module", "template_cache"),
	}
}

// ListActiveByCategory serves the category listing from Redis when present.
// Cache failures fall back to the repository.
func (c *CachedTemplates) ListActiveByCategory(ctx context.Context, category models.Category) ([]*models.WorkflowTemplate, error) {
	key := cacheKeyPrefix + string(category)

	cached, err := c.client.Get(ctx, key).Bytes()

	switch {
	case err == nil:
		var templates []*models.WorkflowTemplate
		if err := json.Unmarshal(cached, &templates); err == nil {
			return templates, nil
		}

		c.logger.WarnContext(ctx, "Discarding undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "Template cache read failed", "key", key, "error", err)
	}

	templates, err := c.TemplateRepository.ListActiveByCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(templates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode templates for cache: %w", err)
	}

	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Template cache write failed", "key", key, "error", err)
	}

	return templates, nil
}

// Save stores the template and invalidates the cached listings.
func (c *CachedTemplates) Save(ctx context.Context, template *models.WorkflowTemplate) error {
	if err := c.TemplateRepository.Save(ctx, template); err != nil {
		return err
	}

	c.invalidate(ctx)

	return nil
}

// UpdateSuccessRate stores the new rate and invalidates the cached listings,
// since the rate decides the listing order.
func (c *CachedTemplates) UpdateSuccessRate(ctx context.Context, id string, rate float64) error {
	if err := c.TemplateRepository.UpdateSuccessRate(ctx, id, rate); err != nil {
		return err
	}

	c.invalidate(ctx)

	return nil
}

func (c *CachedTemplates) invalidate(ctx context.Context) {
	keys := make([]string, 0, len(models.Categories))
	for _, category := range models.Categories {
		keys = append(keys, cacheKeyPrefix+string(category))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "Template cache invalidation failed", "error", err)
	}
}
