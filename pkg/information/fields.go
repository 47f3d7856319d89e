package information

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/dukex/flowpilot/pkg/models"
)

// RuleFor encodes the validation rule stored on a task for one field of a step.
// The rule is the field type, followed by ":" and the "|"-joined options for
// select fields.
func RuleFor(step models.StepDefinition, field string) string {
	fieldType := InferFieldType(field)

	var options []string

	if step.Extension != nil {
		if declared, ok := step.Extension.FieldTypes[field]; ok {
			fieldType = declared
		}

		options = step.Extension.Options[field]
	}

	if len(options) > 0 {
		return string(fieldType) + ":" + strings.Join(options, "|")
	}

	return string(fieldType)
}

// ParseRule decodes a rule produced by RuleFor. An empty rule yields the inferred type.
func ParseRule(field, rule string) (models.FieldType, []string) {
	if rule == "" {
		return InferFieldType(field), nil
	}

	fieldType, options, found := strings.Cut(rule, ":")
	if !found || options == "" {
		return models.FieldType(fieldType), nil
	}

	return models.FieldType(fieldType), strings.Split(options, "|")
}

// InferFieldType guesses the semantic type of a field from its name.
func InferFieldType(field string) models.FieldType {
	name := strings.ToLower(field)

	switch {
	case strings.Contains(name, "email"):
		return models.FieldTypeEmail
	case strings.Contains(name, "phone") || strings.Contains(name, "mobile"):
		return models.FieldTypePhone
	case strings.Contains(name, "timezone"):
		return models.FieldTypeText
	case strings.Contains(name, "date") || strings.HasSuffix(name, "day"):
		return models.FieldTypeDate
	case strings.Contains(name, "time"):
		return models.FieldTypeTime
	case strings.Contains(name, "count") || strings.Contains(name, "number") || strings.Contains(name, "duration") ||
		strings.Contains(name, "amount") || strings.Contains(name, "quantity"):
		return models.FieldTypeNumber
	case strings.HasPrefix(name, "is_") || strings.HasPrefix(name, "has_") || strings.HasPrefix(name, "include") ||
		strings.HasPrefix(name, "enable") || name == "notifications":
		return models.FieldTypeBoolean
	default:
		return models.FieldTypeText
	}
}

// inferConstraints derives the default constraints for a field.
func inferConstraints(field string, fieldType models.FieldType) models.Constraints {
	name := strings.ToLower(field)

	var constraints models.Constraints

	switch fieldType {
	case models.FieldTypeDate:
		constraints.FutureOnly = !strings.Contains(name, "birth")
	case models.FieldTypeTime:
		constraints.BusinessHoursOnly = true
	case models.FieldTypeEmail:
		constraints.BusinessEmailOnly = strings.Contains(name, "work") || strings.Contains(name, "business") ||
			strings.Contains(name, "company")
	}

	return constraints
}

// NewRequirement builds the requirement for a field from the task's stored rule.
func NewRequirement(field, rule string) models.InfoRequirement {
	fieldType, options := ParseRule(field, rule)

	return models.InfoRequirement{
		Field:       field,
		Type:        fieldType,
		Required:    true,
		Options:     options,
		Constraints: inferConstraints(field, fieldType),
	}
}

// FieldLabel turns startTime or meeting_date into "start time" or "meeting date".
func FieldLabel(field string) string {
	var builder strings.Builder

	for i, r := range field {
		switch {
		case r == '_' || r == '-':
			builder.WriteRune(' ')
		case unicode.IsUpper(r) && i > 0:
			builder.WriteRune(' ')
			builder.WriteRune(unicode.ToLower(r))
		default:
			builder.WriteRune(unicode.ToLower(r))
		}
	}

	return strings.Join(strings.Fields(builder.String()), " ")
}

// isEmpty reports whether a collected value should count as absent.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}

	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return true
	}

	return false
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprint(value)
}
