package information

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukex/flowpilot/pkg/models"
)

const (
	isoDate = "2006-01-02"

	businessHourStart = 9
	businessHourEnd   = 17

	maxDomainTypoDistance = 2
)

// Domains of free mail providers. Typo suggestions are made against them and
// they are flagged when a business address is required.
var commonEmailDomains = []string{
	"gmail.com",
	"yahoo.com",
	"hotmail.com",
	"outlook.com",
	"icloud.com",
	"aol.com",
	"live.com",
	"protonmail.com",
}

var dateLayouts = []string{
	isoDate,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC3339,
}

type holiday struct {
	month time.Month
	day   int
}

var holidays = map[holiday]string{
	{time.January, 1}:   "New Year's Day",
	{time.July, 4}:      "Independence Day",
	{time.December, 25}: "Christmas Day",
	{time.December, 31}: "New Year's Eve",
}

var (
	phonePattern = regexp.MustCompile(`^\+?[\d\s().-]+$`)
	timePattern  = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(?::\d{2})?\s*([ap])?\.?(?:m\.?)?$`)
)

// Validator checks and normalizes collected values. Problems are reported in the
// result, never as errors.
type Validator struct {
	now      func() time.Time
	validate *validator.Validate
}

// NewValidator creates a validator that resolves relative dates against now.
func NewValidator(now func() time.Time) *Validator {
	return &Validator{
		now:      now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate checks value against the requirement. Validating an already
// normalized value yields the same normalized value.
func (v *Validator) Validate(value any, requirement models.InfoRequirement) models.ValidationResult {
	result := models.ValidationResult{
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}

	label := FieldLabel(requirement.Field)

	if isEmpty(value) {
		if requirement.Required {
			result.Errors = append(result.Errors, fmt.Sprintf("%s is required", label))
		}

		result.Valid = len(result.Errors) == 0

		return result
	}

	var normalized any

	switch requirement.Type {
	case models.FieldTypeEmail:
		normalized = v.email(value, requirement, &result)
	case models.FieldTypePhone:
		normalized = phone(value, &result)
	case models.FieldTypeDate:
		normalized = v.date(value, requirement, &result)
	case models.FieldTypeTime:
		normalized = clock(value, requirement, &result)
	case models.FieldTypeNumber:
		normalized = number(value, label, &result)
	case models.FieldTypeBoolean:
		normalized = boolean(value, label, &result)
	case models.FieldTypeSelect:
		normalized = selectOne(value, requirement.Options, label, &result)
	case models.FieldTypeMultiSelect:
		normalized = selectMany(value, requirement.Options, label, &result)
	default:
		normalized = strings.TrimSpace(stringify(value))
	}

	if requirement.Validation != "" && len(result.Errors) == 0 {
		matchRule(normalized, requirement.Validation, label, &result)
	}

	result.Valid = len(result.Errors) == 0
	if result.Valid {
		result.NormalizedValue = normalized
	}

	return result
}

func (v *Validator) email(value any, requirement models.InfoRequirement, result *models.ValidationResult) any {
	address := strings.ToLower(strings.TrimSpace(stringify(value)))

	if err := v.validate.Var(address, "required,email"); err != nil {
		result.Errors = append(result.Errors, "Please provide a valid email address")
	}

	local, domain, found := strings.Cut(address, "@")
	if !found || domain == "" {
		return address
	}

	if suggestion, ok := closest(domain, commonEmailDomains, maxDomainTypoDistance); ok {
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("Did you mean %s@%s?", local, suggestion))
	}

	if requirement.Constraints.BusinessEmailOnly && slices.Contains(commonEmailDomains, domain) {
		result.Warnings = append(result.Warnings, "This looks like a personal email address; a work address is expected")
	}

	return address
}

func phone(value any, result *models.ValidationResult) any {
	raw := strings.TrimSpace(stringify(value))

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}

		return -1
	}, raw)

	if !phonePattern.MatchString(raw) || len(digits) < 7 || len(digits) > 15 {
		result.Errors = append(result.Errors, "Please provide a valid phone number")
	}

	return digits
}

func (v *Validator) date(value any, requirement models.InfoRequirement, result *models.ValidationResult) any {
	now := v.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	parsed, ok := parseDate(value, today)
	if !ok {
		result.Errors = append(result.Errors, "Please provide a valid date, for example "+today.AddDate(0, 0, 1).Format(isoDate))

		return stringify(value)
	}

	if requirement.Constraints.FutureOnly && parsed.Before(today) {
		result.Errors = append(result.Errors, "The date must not be in the past")
	}

	weekend := parsed.Weekday() == time.Saturday || parsed.Weekday() == time.Sunday
	if requirement.Constraints.BusinessDaysOnly && weekend {
		result.Warnings = append(result.Warnings, "That date falls on a weekend")
	}

	result.Suggestions = append(result.Suggestions, "That is a "+parsed.Weekday().String())

	if name, ok := holidays[holiday{parsed.Month(), parsed.Day()}]; ok {
		result.Warnings = append(result.Warnings, "That date is "+name)
	}

	return parsed.Format(isoDate)
}

func parseDate(value any, today time.Time) (time.Time, bool) {
	if t, ok := value.(time.Time); ok {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, today.Location()), true
	}

	raw := strings.TrimSpace(stringify(value))

	switch strings.ToLower(raw) {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	}

	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, raw, today.Location())
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, today.Location()), true
		}
	}

	return time.Time{}, false
}

func clock(value any, requirement models.InfoRequirement, result *models.ValidationResult) any {
	raw := strings.ToLower(strings.TrimSpace(stringify(value)))

	hour, minute, ok := parseClock(raw)
	if !ok {
		result.Errors = append(result.Errors, "Please provide a valid time, for example 14:30 or 2:30 PM")

		return raw
	}

	if requirement.Constraints.BusinessHoursOnly &&
		(hour < businessHourStart || hour > businessHourEnd || (hour == businessHourEnd && minute > 0)) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("That is outside business hours (%02d:00-%02d:00)", businessHourStart, businessHourEnd))
	}

	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func parseClock(raw string) (int, int, bool) {
	match := timePattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, 0, false
	}

	hour, _ := strconv.Atoi(match[1])
	minute := 0

	if match[2] != "" {
		minute, _ = strconv.Atoi(match[2])
	}

	meridiem := match[3]
	if match[2] == "" && meridiem == "" {
		return 0, 0, false
	}

	switch meridiem {
	case "a", "p":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}

		hour %= 12
		if meridiem == "p" {
			hour += 12
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, false
	}

	return hour, minute, true
}

func number(value any, label string, result *models.ValidationResult) any {
	switch n := value.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}

	raw := strings.ReplaceAll(strings.TrimSpace(stringify(value)), ",", "")

	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		result.Errors = append(result.Errors, label+" must be a number")

		return raw
	}

	return parsed
}

func boolean(value any, label string, result *models.ValidationResult) any {
	if b, ok := value.(bool); ok {
		return b
	}

	switch strings.ToLower(strings.TrimSpace(stringify(value))) {
	case "true", "yes", "y", "1", "on":
		return true
	case "false", "no", "n", "0", "off":
		return false
	}

	result.Errors = append(result.Errors, label+" must be yes or no")

	return value
}

func selectOne(value any, options []string, label string, result *models.ValidationResult) any {
	choice := strings.TrimSpace(stringify(value))

	if len(options) == 0 {
		return choice
	}

	if option, ok := matchOption(choice, options); ok {
		return option
	}

	result.Errors = append(result.Errors, fmt.Sprintf("%s must be one of: %s", label, strings.Join(options, ", ")))
	suggestOption(choice, options, result)

	return choice
}

func selectMany(value any, options []string, label string, result *models.ValidationResult) any {
	var choices []string

	switch v := value.(type) {
	case []string:
		choices = v
	case []any:
		for _, item := range v {
			choices = append(choices, stringify(item))
		}
	default:
		choices = strings.Split(stringify(value), ",")
	}

	selected := make([]string, 0, len(choices))

	for _, choice := range choices {
		choice = strings.TrimSpace(choice)
		if choice == "" {
			continue
		}

		if len(options) == 0 {
			selected = append(selected, choice)

			continue
		}

		option, ok := matchOption(choice, options)
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("%q is not a valid choice for %s", choice, label))
			suggestOption(choice, options, result)

			continue
		}

		if !slices.Contains(selected, option) {
			selected = append(selected, option)
		}
	}

	return selected
}

func matchOption(choice string, options []string) (string, bool) {
	for _, option := range options {
		if strings.EqualFold(option, choice) {
			return option, true
		}
	}

	return "", false
}

func suggestOption(choice string, options []string, result *models.ValidationResult) {
	lowered := make([]string, len(options))
	for i, option := range options {
		lowered[i] = strings.ToLower(option)
	}

	if suggestion, ok := closest(strings.ToLower(choice), lowered, maxDomainTypoDistance); ok {
		index := slices.Index(lowered, suggestion)
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("Did you mean %s?", options[index]))
	}
}

func matchRule(normalized any, rule, label string, result *models.ValidationResult) {
	pattern, err := regexp.Compile(rule)
	if err != nil {
		result.Warnings = append(result.Warnings, "validation rule for "+label+" could not be applied")

		return
	}

	if !pattern.MatchString(stringify(normalized)) {
		result.Errors = append(result.Errors, label+" is not in the expected format")
	}
}
