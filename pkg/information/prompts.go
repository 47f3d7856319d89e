package information

import (
	"maps"
	"strings"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/template"
)

// PromptContext supplies the placeholders used when phrasing a prompt.
type PromptContext struct {
	Purpose  string         `json:"purpose,omitempty"`   // what the information is for, e.g. "the meeting invite"
	Action   string         `json:"action,omitempty"`    // what the engine is about to do, e.g. "book"
	ItemType string         `json:"item_type,omitempty"` // the thing being arranged, e.g. "the meeting"
	Tone     models.Tone    `json:"tone,omitempty"`
	Values   map[string]any `json:"values,omitempty"`
}

type phrasing struct {
	question      string
	followUp      string
	clarification string
	examples      []string
}

var phrasings = map[models.FieldType]phrasing{
	models.FieldTypeText: {
		question:      `Could you tell me the {{.label}}{{with .purpose}} for {{.}}{{end}}?`,
		followUp:      `Is there anything else I should know about the {{.label}}?`,
		clarification: `I just need a short description of the {{.label}}.`,
	},
	models.FieldTypeEmail: {
		question:      `What email address should I use{{with .purpose}} for {{.}}{{end}}?`,
		followUp:      `Could you double-check the {{.label}}? It doesn't look quite right.`,
		clarification: `I need a complete address, like name@company.com.`,
		examples:      []string{"name@company.com", "jane.doe@example.org"},
	},
	models.FieldTypePhone: {
		question:      `What's the best phone number to reach you{{with .purpose}} for {{.}}{{end}}?`,
		followUp:      `Could you confirm the {{.label}}, including the country code?`,
		clarification: `Digits only are fine, with an optional leading +.`,
		examples:      []string{"+1 555 123 4567", "(555) 123-4567"},
	},
	models.FieldTypeDate: {
		question:      `What date works for {{or .itemType "this"}}?`,
		followUp:      `Does another date work better?`,
		clarification: `Any common format works, such as 2025-03-14, March 14, 2025 or tomorrow.`,
		examples:      []string{"tomorrow", "2025-03-14", "March 14, 2025"},
	},
	models.FieldTypeTime: {
		question:      `What {{.label}} works for {{or .itemType "this"}}?`,
		followUp:      `Would another {{.label}} suit you better?`,
		clarification: `Use 24-hour or 12-hour time, like 14:30 or 2:30 PM.`,
		examples:      []string{"09:30", "2:30 PM"},
	},
	models.FieldTypeNumber: {
		question:      `What {{.label}} should I use{{with .purpose}} for {{.}}{{end}}?`,
		followUp:      `Is {{.label}} a specific number you have in mind?`,
		clarification: `A plain number is enough, like 30.`,
		examples:      []string{"30", "2"},
	},
	models.FieldTypeBoolean: {
		question:      `Should I {{or .action "include"}} {{.label}}?`,
		followUp:      `Just to confirm, yes or no for {{.label}}?`,
		clarification: `A simple yes or no is all I need.`,
		examples:      []string{"yes", "no"},
	},
	models.FieldTypeSelect: {
		question:      `Which {{.label}} would you like{{with .options}}: {{join ", " .}}{{end}}?`,
		followUp:      `Which one of those {{.label}} options fits best?`,
		clarification: `Please pick exactly one of the listed options.`,
	},
	models.FieldTypeMultiSelect: {
		question:      `Which {{.label}} should I include{{with .options}}: {{join ", " .}}{{end}}?`,
		followUp:      `Anything to add to or remove from the {{.label}}?`,
		clarification: `You can pick several options, separated by commas.`,
	},
}

var dateTimePhrasing = phrasing{
	question:      `What date and time work for {{or .itemType "this"}}?`,
	followUp:      `Would a different day or time be easier?`,
	clarification: `Something like "tomorrow at 2:30 PM" or "2025-03-14 14:30" works.`,
	examples:      []string{"tomorrow at 2:30 PM", "2025-03-14 14:30"},
}

var warmPhrases = []string{
	"Happy to help! ",
	"Great, thanks! ",
	"Almost there! ",
	"Sounds good! ",
}

const (
	urgentPrefix = "⚠️ "
	urgentNote   = " This is needed right away so I can continue."
)

// PromptGenerator phrases requirements as conversational questions.
type PromptGenerator struct {
	intN func(n int) int
}

// NewPromptGenerator creates a generator that picks friendly phrases with intN.
func NewPromptGenerator(intN func(n int) int) *PromptGenerator {
	return &PromptGenerator{intN: intN}
}

// Generate phrases a single requirement.
func (g *PromptGenerator) Generate(requirement models.InfoRequirement, promptContext PromptContext) models.Prompt {
	p, ok := phrasings[requirement.Type]
	if !ok {
		p = phrasings[models.FieldTypeText]
	}

	label := FieldLabel(requirement.Field)
	if requirement.Type == models.FieldTypeBoolean {
		label = toggleLabel(label)
	}

	data := placeholders(promptContext, label, requirement.Options)

	return g.build([]string{requirement.Field}, p, data, promptContext.Tone)
}

// GenerateAll phrases every requirement, combining a date field with the time
// field of the same concept into one prompt.
func (g *PromptGenerator) GenerateAll(requirements []models.InfoRequirement, promptContext PromptContext) []models.Prompt {
	prompts := make([]models.Prompt, 0, len(requirements))
	paired := make(map[int]bool)

	for i, requirement := range requirements {
		if paired[i] {
			continue
		}

		if j, ok := relatedTimeField(requirements, i, paired); ok {
			paired[j] = true

			fields := []string{requirement.Field, requirements[j].Field}
			data := placeholders(promptContext, FieldLabel(requirement.Field), nil)
			prompts = append(prompts, g.build(fields, dateTimePhrasing, data, promptContext.Tone))

			continue
		}

		prompts = append(prompts, g.Generate(requirement, promptContext))
	}

	return prompts
}

// relatedTimeField finds the unpaired time requirement sharing the concept of the date requirement at i.
func relatedTimeField(requirements []models.InfoRequirement, i int, paired map[int]bool) (int, bool) {
	if requirements[i].Type != models.FieldTypeDate {
		return 0, false
	}

	stem := conceptStem(requirements[i].Field)

	for j, candidate := range requirements {
		if j == i || paired[j] || candidate.Type != models.FieldTypeTime {
			continue
		}

		if conceptStem(candidate.Field) == stem {
			return j, true
		}
	}

	return 0, false
}

func conceptStem(field string) string {
	label := FieldLabel(field)

	for _, word := range []string{"date", "time", "day"} {
		label = strings.ReplaceAll(label, word, "")
	}

	return strings.Join(strings.Fields(label), " ")
}

// toggleLabel drops a leading verb such as "include" so the label reads as the
// object of the boolean question.
func toggleLabel(label string) string {
	for _, verb := range []string{"include ", "enable "} {
		if rest, ok := strings.CutPrefix(label, verb); ok && rest != "" {
			return rest
		}
	}

	return label
}

// placeholders merges caller values under the built-in keys; label and options
// always describe the requirement being asked for.
func placeholders(promptContext PromptContext, label string, options []string) map[string]any {
	data := map[string]any{"purpose": "", "action": "", "itemType": ""}

	maps.Copy(data, promptContext.Values)

	for key, value := range map[string]string{
		"purpose":  promptContext.Purpose,
		"action":   promptContext.Action,
		"itemType": promptContext.ItemType,
	} {
		if value != "" {
			data[key] = value
		}
	}

	data["label"] = label
	data["options"] = options

	return data
}

func (g *PromptGenerator) build(fields []string, p phrasing, data map[string]any, tone models.Tone) models.Prompt {
	if tone == "" {
		tone = models.ToneProfessional
	}

	label, _ := data["label"].(string)

	prompt := models.Prompt{
		Fields:        fields,
		Question:      render(p.question, data, "Could you tell me the "+label+"?"),
		FollowUp:      render(p.followUp, data, "Could you share the "+label+" again?"),
		Clarification: render(p.clarification, data, "Please give me the "+label+"."),
		Examples:      p.examples,
		Tone:          tone,
	}

	switch tone {
	case models.ToneFriendly:
		prompt.Question = warmPhrases[g.intN(len(warmPhrases))] + prompt.Question
	case models.ToneUrgent:
		prompt.Question = urgentPrefix + prompt.Question + urgentNote
	}

	return prompt
}

// render returns fallback when the phrasing cannot be rendered with data.
func render(phrase string, data map[string]any, fallback string) string {
	text, err := template.RenderString(phrase, data)
	if err != nil {
		return fallback
	}

	return text
}
