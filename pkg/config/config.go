// Package config loads flowpilot settings from an optional YAML file and
// FLOWPILOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "FLOWPILOT"

// Config holds every setting of the API server, the CLI and the MCP server.
type Config struct {
	DatabaseURL  string   `mapstructure:"database_url"  validate:"required"`
	RedisURL     string   `mapstructure:"redis_url"     validate:"omitempty,url"`
	EventBus     string   `mapstructure:"event_bus"     validate:"omitempty,oneof=gochannel kafka"`
	KafkaBrokers []string `mapstructure:"kafka_brokers" validate:"required_if=EventBus kafka"`
	LogLevel     string   `mapstructure:"log_level"     validate:"oneof=debug info warn error"`
	Port         int      `mapstructure:"port"          validate:"min=1,max=65535"`

	// ActionURL is the endpoint execute tasks are POSTed to. Without it actions are only logged.
	ActionURL   string `mapstructure:"action_url"   validate:"omitempty"`
	PluginsPath string `mapstructure:"plugins_path"`

	TemplateCacheTTL time.Duration `mapstructure:"template_cache_ttl" validate:"min=0"`

	Tracing     bool   `mapstructure:"tracing"`
	ServiceName string `mapstructure:"service_name" validate:"required"`

	Engine Engine `mapstructure:"engine"`
}

// Engine tunes the orchestration thresholds.
type Engine struct {
	Threshold     float64 `mapstructure:"threshold"      validate:"gt=0,lte=1"`
	MaxAttempts   int     `mapstructure:"max_attempts"   validate:"min=1"`
	MinSkips      int     `mapstructure:"min_skips"      validate:"min=1"`
	MinConfidence float64 `mapstructure:"min_confidence" validate:"min=0,max=100"`
}

var defaults = map[string]any{
	"database_url":          "file://./data",
	"redis_url":             "",
	"event_bus":             "",
	"kafka_brokers":         []string{},
	"log_level":             "info",
	"port":                  9091,
	"action_url":            "",
	"plugins_path":          "",
	"template_cache_ttl":    5 * time.Minute,
	"tracing":               false,
	"service_name":          "flowpilot",
	"engine.threshold":      0.7,
	"engine.max_attempts":   3,
	"engine.min_skips":      3,
	"engine.min_confidence": 70.0,
}

// Load reads path, or ./flowpilot.yaml when path is empty and the file exists,
// applies FLOWPILOT_* overrides (FLOWPILOT_ENGINE_THRESHOLD for engine.threshold)
// and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("flowpilot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config

	err = v.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
