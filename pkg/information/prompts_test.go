package information

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowpilot/pkg/models"
)

func firstPhrase(int) int { return 0 }

func TestPromptGenerator_Generate(t *testing.T) {
	generator := NewPromptGenerator(firstPhrase)

	prompt := generator.Generate(NewRequirement("email", ""), PromptContext{Purpose: "the meeting invite"})
	assert.Equal(t, []string{"email"}, prompt.Fields)
	assert.Equal(t, "What email address should I use for the meeting invite?", prompt.Question)
	assert.Equal(t, models.ToneProfessional, prompt.Tone)
	assert.NotEmpty(t, prompt.FollowUp)
	assert.NotEmpty(t, prompt.Clarification)
	assert.NotEmpty(t, prompt.Examples)

	prompt = generator.Generate(NewRequirement("email", ""), PromptContext{})
	assert.Equal(t, "What email address should I use?", prompt.Question)

	prompt = generator.Generate(NewRequirement("priority", "select:low|medium|high"), PromptContext{})
	assert.Equal(t, "Which priority would you like: low, medium, high?", prompt.Question)

	prompt = generator.Generate(NewRequirement("startTime", ""), PromptContext{ItemType: "the meeting"})
	assert.Equal(t, "What start time works for the meeting?", prompt.Question)

	prompt = generator.Generate(NewRequirement("include_meeting_link", ""), PromptContext{Action: "add"})
	assert.Equal(t, "Should I add meeting link?", prompt.Question)

	prompt = generator.Generate(NewRequirement("enable_notifications", ""), PromptContext{})
	assert.Equal(t, "Should I include notifications?", prompt.Question)
}

func TestPromptGenerator_CallerValuesKeepRequirementKeys(t *testing.T) {
	generator := NewPromptGenerator(firstPhrase)

	// Values decoded from JSON carry lists as []any.
	prompt := generator.Generate(NewRequirement("priority", "select:low|high"), PromptContext{
		Values: map[string]any{"options": []any{"x", "y"}, "label": "colour", "purpose": "the ticket"},
	})
	assert.Equal(t, "Which priority would you like: low, high?", prompt.Question)
	assert.NotContains(t, prompt.FollowUp, "{{")

	prompt = generator.Generate(NewRequirement("email", ""), PromptContext{
		Values: map[string]any{"purpose": "the ticket"},
	})
	assert.Equal(t, "What email address should I use for the ticket?", prompt.Question)
}

func TestRender_FallsBackToPlainQuestion(t *testing.T) {
	data := map[string]any{"label": "priority", "options": []any{"x"}}

	text := render(`Which {{.label}}: {{join ", " .options}}?`, data, "Could you tell me the priority?")
	assert.Equal(t, "Could you tell me the priority?", text)
}

func TestPromptGenerator_Tone(t *testing.T) {
	generator := NewPromptGenerator(firstPhrase)
	requirement := NewRequirement("attendees", "")

	professional := generator.Generate(requirement, PromptContext{Tone: models.ToneProfessional})
	casual := generator.Generate(requirement, PromptContext{Tone: models.ToneCasual})
	assert.Equal(t, professional.Question, casual.Question)

	friendly := generator.Generate(requirement, PromptContext{Tone: models.ToneFriendly})
	assert.Equal(t, warmPhrases[0]+professional.Question, friendly.Question)

	urgent := generator.Generate(requirement, PromptContext{Tone: models.ToneUrgent})
	assert.True(t, strings.HasPrefix(urgent.Question, urgentPrefix))
	assert.True(t, strings.HasSuffix(urgent.Question, urgentNote))
	assert.Equal(t, models.ToneUrgent, urgent.Tone)
}

func TestPromptGenerator_GenerateAll(t *testing.T) {
	generator := NewPromptGenerator(firstPhrase)

	prompts := generator.GenerateAll([]models.InfoRequirement{
		NewRequirement("attendees", ""),
		NewRequirement("meeting_date", ""),
		NewRequirement("email", ""),
		NewRequirement("meeting_time", ""),
	}, PromptContext{ItemType: "the meeting"})

	require.Len(t, prompts, 3)
	assert.Equal(t, []string{"attendees"}, prompts[0].Fields)
	assert.Equal(t, []string{"meeting_date", "meeting_time"}, prompts[1].Fields)
	assert.Equal(t, "What date and time work for the meeting?", prompts[1].Question)
	assert.Equal(t, []string{"email"}, prompts[2].Fields)
}

func TestPromptGenerator_UnrelatedDateAndTime(t *testing.T) {
	generator := NewPromptGenerator(firstPhrase)

	prompts := generator.GenerateAll([]models.InfoRequirement{
		NewRequirement("delivery_date", ""),
		NewRequirement("startTime", ""),
	}, PromptContext{})

	require.Len(t, prompts, 2)
	assert.Equal(t, []string{"delivery_date"}, prompts[0].Fields)
	assert.Equal(t, []string{"startTime"}, prompts[1].Fields)
}

func TestPromptGenerator_Values(t *testing.T) {
	generator := NewPromptGenerator(firstPhrase)

	prompt := generator.Generate(NewRequirement("attendees", ""), PromptContext{
		Values: map[string]any{"purpose": "the quarterly review"},
	})
	assert.Equal(t, "Could you tell me the attendees for the quarterly review?", prompt.Question)
}
