// Package template renders text/template placeholders for prompts and action payloads.
package template

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dukex/flowpilot/pkg/models"
)

var funcs = template.FuncMap{
	"now":   func() string { return time.Now().UTC().Format(time.RFC3339) },
	"rand":  pick,
	"title": capitalize,
	"join":  func(sep string, values []string) string { return strings.Join(values, sep) },
}

// RenderWithDescriptor renders input with the action descriptor exposed as
// .type, .payload, .workflow_id, .task_id, .conversation_id, .user_id and .env.
func RenderWithDescriptor(input string, descriptor *models.ActionDescriptor) (any, error) {
	return Render(input, map[string]any{
		"type":            descriptor.Type,
		"payload":         descriptor.Payload,
		"workflow_id":     descriptor.WorkflowID,
		"task_id":         descriptor.TaskID,
		"conversation_id": descriptor.ConversationID,
		"user_id":         descriptor.UserID,
		"env":             environment(),
	})
}

// RenderString executes text against data and returns the output as-is.
func RenderString(text string, data any) (string, error) {
	tmpl, err := template.New("text").Funcs(funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", text, err)
	}

	var out strings.Builder

	err = tmpl.Execute(&out, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template %q: %w", text, err)
	}

	return out.String(), nil
}

// Render executes text and turns output that looks like a JSON document, a
// number or a boolean into that value.
func Render(text string, data any) (any, error) {
	out, err := RenderString(text, data)
	if err != nil {
		return nil, err
	}

	return coerce(text, strings.TrimSpace(out))
}

func coerce(text, out string) (any, error) {
	if isJSONDocument(out) {
		var value any

		err := json.Unmarshal([]byte(out), &value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse json rendered from %q: %w", text, err)
		}

		return value, nil
	}

	if number, err := strconv.ParseFloat(out, 64); err == nil {
		return number, nil
	}

	if boolean, err := strconv.ParseBool(out); err == nil {
		return boolean, nil
	}

	return out, nil
}

func isJSONDocument(out string) bool {
	return (strings.HasPrefix(out, "{") && strings.HasSuffix(out, "}")) ||
		(strings.HasPrefix(out, "[") && strings.HasSuffix(out, "]"))
}

// pick returns a pseudo-random index below n, or 0 when n is not positive.
func pick(n int) int {
	if n <= 0 {
		return 0
	}

	return rand.IntN(n) //nolint:gosec // phrase variety only
}

func capitalize(value string) string {
	r, size := utf8.DecodeRuneInString(value)
	if r == utf8.RuneError {
		return value
	}

	return string(unicode.ToUpper(r)) + value[size:]
}

func environment() map[string]any {
	env := make(map[string]any)

	for _, entry := range os.Environ() {
		if key, value, ok := strings.Cut(entry, "="); ok {
			env[key] = value
		}
	}

	return env
}
