package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "flowpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file://./data", config.DatabaseURL)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 9091, config.Port)
	assert.Equal(t, 5*time.Minute, config.TemplateCacheTTL)
	assert.InDelta(t, 0.7, config.Engine.Threshold, 0.0001)
	assert.Equal(t, 3, config.Engine.MaxAttempts)
	assert.InDelta(t, 70.0, config.Engine.MinConfidence, 0.0001)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
database_url: postgres://flowpilot@localhost/flowpilot
event_bus: kafka
kafka_brokers: [localhost:9092]
log_level: debug
engine:
  threshold: 0.8
  min_skips: 5
`)

	t.Setenv("FLOWPILOT_PORT", "8080")
	t.Setenv("FLOWPILOT_ENGINE_MAX_ATTEMPTS", "5")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://flowpilot@localhost/flowpilot", config.DatabaseURL)
	assert.Equal(t, "kafka", config.EventBus)
	assert.Equal(t, []string{"localhost:9092"}, config.KafkaBrokers)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 8080, config.Port)
	assert.InDelta(t, 0.8, config.Engine.Threshold, 0.0001)
	assert.Equal(t, 5, config.Engine.MinSkips)
	assert.Equal(t, 5, config.Engine.MaxAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown event bus", "event_bus: nats", "EventBus"},
		{"kafka without brokers", "event_bus: kafka", "KafkaBrokers"},
		{"threshold above one", "engine:\n  threshold: 1.5", "Threshold"},
		{"bad log level", "log_level: verbose", "LogLevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)

			var validationErrors validator.ValidationErrors
			require.True(t, errors.As(err, &validationErrors))
			assert.Equal(t, tt.field, validationErrors[0].Field())
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
