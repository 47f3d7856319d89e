// Package catalog resolves intent categories to workflow templates.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/flowpilot/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidTemplateStructure indicates a stored step list could not be parsed or is inconsistent.
var ErrInvalidTemplateStructure = errors.New("invalid template structure")

const structureSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "kind", "title"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"kind": {"type": "string", "enum": ["gather", "validate", "confirm", "execute"]},
			"title": {"type": "string"},
			"description": {"type": "string"},
			"required_fields": {"type": "array", "items": {"type": "string"}},
			"optional_fields": {"type": "array", "items": {"type": "string"}},
			"depends_on": {"type": "array", "items": {"type": "string"}},
			"critical": {"type": "boolean"},
			"retry_on_failure": {"type": "boolean"},
			"extension": {
				"type": "object",
				"properties": {
					"skip_if_known": {"type": "boolean"},
					"action_type": {"type": "string"},
					"field_types": {
						"type": "object",
						"additionalProperties": {
							"type": "string",
							"enum": ["text", "email", "phone", "date", "time", "number", "boolean", "select", "multiselect"]
						}
					},
					"options": {
						"type": "object",
						"additionalProperties": {"type": "array", "items": {"type": "string"}}
					}
				}
			}
		}
	}
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(structureSchema))
})

// ParseStructure decodes the stored JSON step list of a template and checks that
// step ids are unique and every dependency points to an earlier step.
func ParseStructure(structure string) ([]models.StepDefinition, error) {
	if !json.Valid([]byte(structure)) {
		return nil, fmt.Errorf("%w: structure is not valid JSON", ErrInvalidTemplateStructure)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile structure schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(structure))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplateStructure, err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidTemplateStructure, strings.Join(problems, "; "))
	}

	var steps []models.StepDefinition

	err = json.Unmarshal([]byte(structure), &steps)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplateStructure, err)
	}

	seen := make(map[string]bool, len(steps))

	for _, step := range steps {
		if seen[step.ID] {
			return nil, fmt.Errorf("%w: duplicate step id %q", ErrInvalidTemplateStructure, step.ID)
		}

		for _, dependency := range step.DependsOn {
			if dependency == step.ID {
				return nil, fmt.Errorf("%w: step %q depends on itself", ErrInvalidTemplateStructure, step.ID)
			}

			// Only earlier steps are visible, which keeps every graph acyclic.
			if !seen[dependency] {
				return nil, fmt.Errorf("%w: step %q depends on unknown or later step %q",
					ErrInvalidTemplateStructure, step.ID, dependency)
			}
		}

		seen[step.ID] = true
	}

	return steps, nil
}

// MarshalStructure encodes a step list into its stored form.
func MarshalStructure(steps []models.StepDefinition) (string, error) {
	body, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("failed to marshal template structure: %w", err)
	}

	return string(body), nil
}

func hasCapabilities(required, available []string) bool {
	for _, capability := range required {
		if !slices.Contains(available, capability) {
			return false
		}
	}

	return true
}
