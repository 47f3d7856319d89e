package information

import (
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/providers"
)

const (
	// DefaultThreshold is the confidence a value needs before a field counts as known.
	DefaultThreshold = 0.7

	userConfidence      = 1.0
	memoryConfidence    = 0.9
	profileConfidence   = 1.0
	inferenceConfidence = 0.5

	recentMemoryLimit = 10
)

// Keys that may hold a field inside user_info memory entries.
var userInfoSources = map[string][]string{
	"email":       {"email", "email_address"},
	"name":        {"name", "full_name", "display_name"},
	"phone":       {"phone", "phone_number", "mobile"},
	"preferences": {"preferences"},
}

// Profile attributes that may answer a field.
var profileSources = map[string][]string{
	"email":    {"email"},
	"name":     {"name", "full_name"},
	"phone":    {"phone", "phone_number"},
	"timezone": {"timezone"},
}

// Sourced is a value together with where it came from.
type Sourced struct {
	Value      any
	Provenance models.Provenance
	Confidence float64
}

// KnownValue looks a field up in the existing data and then in the user_info
// entries among the ten most recent memory entries.
func KnownValue(field string, existing map[string]any, memory []models.MemoryEntry) (Sourced, bool) {
	if value, ok := existing[field]; ok && !isEmpty(value) {
		return Sourced{Value: value, Provenance: models.ProvenanceUser, Confidence: userConfidence}, true
	}

	if value, ok := fromMemory(field, providers.Recent(memory, recentMemoryLimit), true); ok {
		return Sourced{Value: value, Provenance: models.ProvenanceMemory, Confidence: memoryConfidence}, true
	}

	return Sourced{}, false
}

// fromMemory returns the first match in entries, which must be ordered newest first.
func fromMemory(field string, entries []models.MemoryEntry, userInfoOnly bool) (any, bool) {
	for _, entry := range entries {
		userInfo := entry.HasTag(models.MemoryEntryTypeUserInfo)
		if userInfoOnly && !userInfo {
			continue
		}

		if value, ok := entry.Data[field]; ok && !isEmpty(value) {
			return value, true
		}

		if !userInfo {
			continue
		}

		for _, key := range userInfoSources[field] {
			if value, ok := entry.Data[key]; ok && !isEmpty(value) {
				return value, true
			}
		}
	}

	return nil, false
}

func fromProfile(field string, profile map[string]any) (any, bool) {
	for _, key := range profileSources[field] {
		if value, ok := profile[key]; ok && !isEmpty(value) {
			return value, true
		}
	}

	return nil, false
}

// inferValue fills the handful of fields that have a sensible contextual default.
func inferValue(field string, workflowContext models.WorkflowContext) (any, bool) {
	switch field {
	case "timezone":
		if workflowContext.Timezone != "" {
			return workflowContext.Timezone, true
		}

		return "UTC", true
	case "language":
		if workflowContext.Language != "" {
			return workflowContext.Language, true
		}

		return "en", true
	case "priority":
		return "medium", true
	default:
		return nil, false
	}
}
