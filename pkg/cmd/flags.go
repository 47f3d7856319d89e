package cmd

import (
	"context"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowpilot/pkg/config"
)

// ConfigFlags are the flags shared by every flowpilot binary. Set flags win
// over the config file and FLOWPILOT_* variables.
func ConfigFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file",
			Sources: cli.EnvVars("FLOWPILOT_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL for persistence (postgres://... or a directory)",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for conversation memory, profiles and the template cache",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Sources: cli.EnvVars("EVENT_BUS"),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers for the kafka event bus",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "action-url",
			Usage:   "Endpoint execute tasks are POSTed to",
			Sources: cli.EnvVars("ACTION_URL"),
		},
		&cli.StringFlag{
			Name:  "plugins-path",
			Usage: "Path to the directory containing executor plugins",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// LoadConfig loads the config named by --config and applies the flags the user set.
func LoadConfig(_ context.Context, command *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"database-url": &cfg.DatabaseURL,
		"redis-url":    &cfg.RedisURL,
		"event-bus":    &cfg.EventBus,
		"action-url":   &cfg.ActionURL,
		"plugins-path": &cfg.PluginsPath,
		"log-level":    &cfg.LogLevel,
	}

	for name, field := range overrides {
		if command.IsSet(name) {
			*field = command.String(name)
		}
	}

	if command.IsSet("kafka-brokers") {
		cfg.KafkaBrokers = command.StringSlice("kafka-brokers")
	}

	if command.IsSet("port") {
		cfg.Port = command.Int("port")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
