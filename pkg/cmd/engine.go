// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dukex/flowpilot/pkg/catalog"
	"github.com/dukex/flowpilot/pkg/config"
	"github.com/dukex/flowpilot/pkg/engine"
	"github.com/dukex/flowpilot/pkg/eventbus"
	"github.com/dukex/flowpilot/pkg/otelhelper"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/providers/redis"
	"github.com/dukex/flowpilot/pkg/visibility"
)

// Runtime is an engine together with the resources it was built on.
type Runtime struct {
	Engine *engine.Engine
	Store  persistence.Persistence
	Bus    eventbus.EventBus
	Redis  *goredis.Client
}

// NewRuntime wires an engine from cfg: the store, the optional Redis memory,
// profile and template cache, the optional event bus, the action executors and
// tracing.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	store, err := NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence: %w", err)
	}

	runtime := &Runtime{Store: store}

	opts := []engine.Option{
		engine.WithThreshold(cfg.Engine.Threshold),
		engine.WithMaxAttempts(cfg.Engine.MaxAttempts),
		engine.WithOptimizerLimits(cfg.Engine.MinSkips, cfg.Engine.MinConfidence),
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Join(err, runtime.Close(ctx))
		}

		runtime.Redis = client

		opts = append(opts,
			engine.WithMemoryProvider(redis.NewMemoryStore(client, logger)),
			engine.WithProfileProvider(redis.NewProfileStore(client)),
		)

		if cfg.TemplateCacheTTL > 0 {
			opts = append(opts, engine.WithTemplateRepository(
				catalog.NewCachedTemplates(store.TemplateRepository(), client, cfg.TemplateCacheTTL, logger),
			))
		}
	}

	bus, err := NewEventBus(cfg.EventBus, cfg.KafkaBrokers, cfg.ServiceName, logger)
	if err != nil {
		return nil, errors.Join(err, runtime.Close(ctx))
	}

	if bus != nil {
		runtime.Bus = bus

		opts = append(opts,
			engine.WithEventPublisher(bus),
			engine.WithMirror(visibility.NewEventMirror(bus)),
		)
	}

	executor, err := NewActionRegistry(logger, cfg.ActionURL, cfg.PluginsPath)
	if err != nil {
		return nil, errors.Join(err, runtime.Close(ctx))
	}

	opts = append(opts, engine.WithExecutor(executor))

	if cfg.Tracing {
		tracer, err := otelhelper.NewTracer(ctx, cfg.ServiceName)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create tracer: %w", err), runtime.Close(ctx))
		}

		opts = append(opts, engine.WithTracer(tracer))
	}

	runtime.Engine = engine.New(store, logger, opts...)

	return runtime, nil
}

// Close releases the bus, the Redis client and the store.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error

	if r.Bus != nil {
		errs = append(errs, r.Bus.Close())
	}

	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}

	if r.Store != nil {
		errs = append(errs, r.Store.Close(ctx))
	}

	return errors.Join(errs...)
}
