package engine

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/flowpilot/pkg/actions"
	"github.com/dukex/flowpilot/pkg/eventbus"
	"github.com/dukex/flowpilot/pkg/persistence"
	"github.com/dukex/flowpilot/pkg/providers"
	"github.com/dukex/flowpilot/pkg/trigger"
	"github.com/dukex/flowpilot/pkg/visibility"
)

type options struct {
	executor      actions.Executor
	memory        providers.MemoryProvider
	profiles      providers.ProfileProvider
	mirror        visibility.Mirror
	publisher     eventbus.EventPublisher
	templates     persistence.TemplateRepository
	secondary     trigger.SecondaryDetector
	tracer        trace.Tracer
	threshold     float64
	maxAttempts   int
	minSkips      int
	minConfidence float64
	now           func() time.Time
}

// Option configures an Engine.
type Option func(*options)

// WithExecutor sets the executor ExecuteTask dispatches to.
func WithExecutor(executor actions.Executor) Option {
	return func(o *options) { o.executor = executor }
}

// WithMemoryProvider sets where conversation memory is read from.
func WithMemoryProvider(memory providers.MemoryProvider) Option {
	return func(o *options) { o.memory = memory }
}

// WithProfileProvider sets where user profiles are read from.
func WithProfileProvider(profiles providers.ProfileProvider) Option {
	return func(o *options) { o.profiles = profiles }
}

// WithMirror sets where the user-facing copies of tasks are written.
func WithMirror(mirror visibility.Mirror) Option {
	return func(o *options) { o.mirror = mirror }
}

// WithEventPublisher publishes workflow progress events.
func WithEventPublisher(publisher eventbus.EventPublisher) Option {
	return func(o *options) { o.publisher = publisher }
}

// WithTemplateRepository replaces the store's template repository, e.g. with catalog.CachedTemplates.
func WithTemplateRepository(templates persistence.TemplateRepository) Option {
	return func(o *options) { o.templates = templates }
}

// WithSecondaryDetector sets the detector consulted when no trigger pattern matches.
func WithSecondaryDetector(secondary trigger.SecondaryDetector) Option {
	return func(o *options) { o.secondary = secondary }
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithThreshold sets the confidence a known value needs.
func WithThreshold(threshold float64) Option {
	return func(o *options) { o.threshold = threshold }
}

// WithMaxAttempts sets how often a retry-on-failure task may fail.
func WithMaxAttempts(attempts int) Option {
	return func(o *options) { o.maxAttempts = attempts }
}

// WithOptimizerLimits sets how many skips make a step removable and the
// confidence a pattern needs before it is suggested.
func WithOptimizerLimits(minSkips int, minConfidence float64) Option {
	return func(o *options) {
		o.minSkips = minSkips
		o.minConfidence = minConfidence
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
