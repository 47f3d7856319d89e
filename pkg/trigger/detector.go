// Package trigger detects when a free-text request implies a multi-step workflow.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dukex/flowpilot/pkg/models"
)

type categoryTriggers struct {
	category models.Category
	patterns []*regexp.Regexp
}

// Checked in order; the first category with a matching pattern wins.
var triggers = []categoryTriggers{
	{
		category: models.CategoryScheduling,
		patterns: compile(
			`\b(schedule|book|set up|setup|arrange|organi[sz]e|plan)\b.*\b(meeting|call|appointment|sync|demo|interview|session)s?\b`,
			`\b(reschedule|calendar|availability)\b`,
			`\b(meet|catch up)\b.*\b(tomorrow|today|next week|on (monday|tuesday|wednesday|thursday|friday))\b`,
		),
	},
	{
		category: models.CategorySupport,
		patterns: compile(
			`\b(help|support|ticket|refund)\b.*\b(with|for|on|request)\b`,
			`\b(not working|doesn't work|does not work|broken|crash(es|ed)?|bug|error|issue|problem)\b`,
			`\b(complain|complaint|escalate)\b`,
		),
	},
	{
		category: models.CategoryCommunication,
		patterns: compile(
			`\b(send|write|draft|compose|forward)\b.*\b(email|e-mail|message|note|reply|newsletter|announcement)s?\b`,
			`\b(notify|remind|follow up|follow-up|reach out)\b`,
		),
	},
	{
		category: models.CategoryDataCollection,
		patterns: compile(
			`\b(survey|questionnaire|form|poll)s?\b`,
			`\b(collect|gather)\b.*\b(feedback|information|info|details|responses|data)\b`,
			`\b(sign ?up|register|registration|onboard(ing)?)\b`,
		),
	},
}

func compile(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, pattern := range patterns {
		compiled[i] = regexp.MustCompile(pattern)
	}

	return compiled
}

var whitespace = regexp.MustCompile(`\s+`)

// TemplateFinder resolves a category to a template for the caller's capabilities.
type TemplateFinder interface {
	Find(ctx context.Context, category models.Category, capabilities []string) (*models.WorkflowTemplate, error)
}

// SecondaryDetector gets a chance when no pattern matches.
type SecondaryDetector interface {
	DetectCategory(ctx context.Context, text string) (models.Category, bool, error)
}

// NoopSecondaryDetector never detects anything.
type NoopSecondaryDetector struct{}

func (NoopSecondaryDetector) DetectCategory(context.Context, string) (models.Category, bool, error) {
	return "", false, nil
}

// Context is the optional partial context accompanying an utterance.
type Context struct {
	Capabilities []string
	ExistingData map[string]any
}

// Detector maps utterances to workflow templates.
type Detector struct {
	templates TemplateFinder
	secondary SecondaryDetector
	logger    *slog.Logger
}

// NewDetector creates a detector. A nil secondary detector behaves like NoopSecondaryDetector.
func NewDetector(templates TemplateFinder, secondary SecondaryDetector, logger *slog.Logger) *Detector {
	if secondary == nil {
		secondary = NoopSecondaryDetector{}
	}

	return &Detector{
		templates: templates,
		secondary: secondary,
		logger:    logger.With("module", "trigger"),
	}
}

// Category returns the first matching category, or false when the text implies no workflow.
func (d *Detector) Category(ctx context.Context, text string) (models.Category, bool, error) {
	normalized := normalize(text)
	if normalized == "" {
		return "", false, nil
	}

	for _, candidate := range triggers {
		for _, pattern := range candidate.patterns {
			if pattern.MatchString(normalized) {
				d.logger.DebugContext(ctx, "Trigger matched", "category", candidate.category, "pattern", pattern.String())

				return candidate.category, true, nil
			}
		}
	}

	category, ok, err := d.secondary.DetectCategory(ctx, normalized)
	if err != nil {
		return "", false, fmt.Errorf("secondary detection failed: %w", err)
	}

	return category, ok, nil
}

// Detect returns the template the utterance calls for, or nil when no workflow is needed.
func (d *Detector) Detect(ctx context.Context, text string, detectContext Context) (*models.WorkflowTemplate, error) {
	category, ok, err := d.Category(ctx, text)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, nil
	}

	template, err := d.templates.Find(ctx, category, detectContext.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template for %s: %w", category, err)
	}

	return template, nil
}

func normalize(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(strings.ToLower(text), " "))
}
