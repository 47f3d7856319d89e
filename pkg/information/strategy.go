package information

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/dukex/flowpilot/pkg/catalog"
	"github.com/dukex/flowpilot/pkg/models"
)

// maxAskFields is the most missing critical fields for which the user is asked
// to keep going instead of the workflow waiting.
const maxAskFields = 2

var defaultValues = map[string]any{
	"priority":             "medium",
	"include_meeting_link": true,
	"notifications":        true,
	"timezone":             "UTC",
}

// StrategyOptions lets callers opt into the algorithmic strategies.
type StrategyOptions struct {
	AllowInference bool `json:"allow_inference"`
	ForceProceed   bool `json:"force_proceed"`
}

// StrategyDecision is how a workflow should continue with the data collected so far.
type StrategyDecision struct {
	Strategy        models.Strategy `json:"strategy"`
	MissingCritical []string        `json:"missing_critical"`
	Data            map[string]any  `json:"data"`
	Inferred        map[string]any  `json:"inferred,omitempty"`
	Message         string          `json:"message"`
}

// DetermineStrategy compares collected against the required fields of the
// template's critical steps.
func (o *Orchestrator) DetermineStrategy(ctx context.Context, workflowID string, collected map[string]any, opts StrategyOptions) (*StrategyDecision, error) {
	workflow, err := o.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	critical, err := o.criticalFields(ctx, workflow)
	if err != nil {
		return nil, err
	}

	data := maps.Clone(collected)
	if data == nil {
		data = make(map[string]any)
	}

	missing := make([]string, 0)

	for _, field := range critical {
		if isEmpty(data[field]) {
			missing = append(missing, field)
		}
	}

	decision := &StrategyDecision{MissingCritical: missing, Data: data}

	switch {
	case len(missing) == 0:
		for key, value := range defaultValues {
			if isEmpty(data[key]) {
				data[key] = value
			}
		}

		decision.Strategy = models.StrategyDefault
		decision.Message = "All critical information is available; defaults were applied to the rest."
	case opts.ForceProceed:
		decision.Strategy = models.StrategyProceed
		decision.Message = "Proceeding without " + labels(missing) + "."
	default:
		if opts.AllowInference {
			if inferred, ok := inferGaps(data, missing, workflow.Context); ok {
				maps.Copy(data, inferred)

				decision.Strategy = models.StrategyInfer
				decision.Inferred = inferred
				decision.MissingCritical = []string{}
				decision.Message = "Filled " + labels(slices.Sorted(maps.Keys(inferred))) + " from the information provided."

				break
			}
		}

		if len(missing) <= maxAskFields {
			decision.Strategy = models.StrategyAsk
			decision.Message = fmt.Sprintf("I still need %s. Shall we continue?", labels(missing))
		} else {
			decision.Strategy = models.StrategyWait
			decision.Message = "Waiting for " + labels(missing) + "."
		}
	}

	o.logger.DebugContext(ctx, "Determined strategy",
		"workflow_id", workflowID, "strategy", decision.Strategy, "missing", len(decision.MissingCritical))

	return decision, nil
}

// criticalFields lists, once each and in step order, the required fields of critical steps.
func (o *Orchestrator) criticalFields(ctx context.Context, workflow *models.Workflow) ([]string, error) {
	template := catalog.DefaultSchedulingTemplate()

	if workflow.TemplateID != nil && *workflow.TemplateID != "" {
		stored, err := o.templates.GetByID(ctx, *workflow.TemplateID)
		if err != nil {
			return nil, err
		}

		template = stored
	}

	steps, err := catalog.ParseStructure(template.Structure)
	if err != nil {
		return nil, err
	}

	var fields []string

	for _, step := range steps {
		if !step.Critical {
			continue
		}

		for _, field := range step.RequiredFields {
			if !slices.Contains(fields, field) {
				fields = append(fields, field)
			}
		}
	}

	return fields, nil
}

// inferGaps computes missing fields from related ones. It succeeds only when every gap is filled.
func inferGaps(data map[string]any, missing []string, workflowContext models.WorkflowContext) (map[string]any, bool) {
	inferred := make(map[string]any)

	for _, field := range missing {
		var (
			value any
			ok    bool
		)

		switch FieldLabel(field) {
		case "end time":
			value, ok = endFromStart(data)
		case "duration":
			value, ok = durationFromRange(data)
		default:
			value, ok = inferValue(field, workflowContext)
		}

		if !ok {
			return nil, false
		}

		inferred[field] = value
	}

	return inferred, true
}

func endFromStart(data map[string]any) (any, bool) {
	start, ok := clockField(data, "start time")
	if !ok {
		return nil, false
	}

	duration, ok := minutesField(data, "duration")
	if !ok {
		return nil, false
	}

	end := (start + duration) % (24 * 60)

	return fmt.Sprintf("%02d:%02d", end/60, end%60), true
}

func durationFromRange(data map[string]any) (any, bool) {
	start, ok := clockField(data, "start time")
	if !ok {
		return nil, false
	}

	end, ok := clockField(data, "end time")
	if !ok || end <= start {
		return nil, false
	}

	return float64(end - start), true
}

// fieldByLabel finds a value whose key reads as label, so startTime and start_time both match.
func fieldByLabel(data map[string]any, label string) (any, bool) {
	for key, value := range data {
		if FieldLabel(key) == label && !isEmpty(value) {
			return value, true
		}
	}

	return nil, false
}

// clockField returns the minutes since midnight of a time field.
func clockField(data map[string]any, label string) (int, bool) {
	value, ok := fieldByLabel(data, label)
	if !ok {
		return 0, false
	}

	hour, minute, ok := parseClock(strings.ToLower(strings.TrimSpace(stringify(value))))

	return hour*60 + minute, ok
}

func minutesField(data map[string]any, label string) (int, bool) {
	value, ok := fieldByLabel(data, label)
	if !ok {
		return 0, false
	}

	switch n := value.(type) {
	case int:
		return n, n > 0
	case float64:
		return int(n), n > 0
	}

	minutes, err := strconv.Atoi(strings.TrimSpace(stringify(value)))

	return minutes, err == nil && minutes > 0
}

func labels(fields []string) string {
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = FieldLabel(field)
	}

	switch len(names) {
	case 0:
		return "nothing"
	case 1:
		return "the " + names[0]
	default:
		return "the " + strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
