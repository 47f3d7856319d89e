package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowpilot/pkg/cmd"
	"github.com/dukex/flowpilot/pkg/information"
	"github.com/dukex/flowpilot/pkg/log"
	"github.com/dukex/flowpilot/pkg/mcpserver"
	"github.com/dukex/flowpilot/pkg/models"
	"github.com/dukex/flowpilot/pkg/providers/redis"
	"github.com/dukex/flowpilot/pkg/trigger"
	"github.com/dukex/flowpilot/pkg/workflow"
)

var version = "dev"

var (
	errMissingArgument = errors.New("missing argument")
	errRedisRequired   = errors.New("profiles need a redis url")
)

type runtimeAction func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error

// withRuntime loads the config, builds the engine and closes it after action.
func withRuntime(action runtimeAction) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		cfg, err := cmd.LoadConfig(ctx, command)
		if err != nil {
			return err
		}

		log.Setup(cfg.LogLevel)

		logger := log.WithModule("cli")

		runtime, err := cmd.NewRuntime(ctx, cfg, logger)
		if err != nil {
			return err
		}

		defer func() {
			err := runtime.Close(context.Background())
			if err != nil {
				logger.ErrorContext(ctx, "Failed to close runtime", "error", err)
			}
		}()

		return action(log.ContextWithLogger(ctx, logger.With("command", command.Name)), command, runtime)
	}
}

func printJSON(command *cli.Command, value any) error {
	encoder := json.NewEncoder(command.Root().Writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}

func argument(command *cli.Command, index int, name string) (string, error) {
	value := command.Args().Get(index)
	if value == "" {
		return "", fmt.Errorf("%w: %s", errMissingArgument, name)
	}

	return value, nil
}

// jsonObject decodes a flag holding a JSON object. An unset flag is an empty map.
func jsonObject(command *cli.Command, name string) (map[string]any, error) {
	object := map[string]any{}

	raw := command.String(name)
	if raw == "" {
		return object, nil
	}

	err := json.Unmarshal([]byte(raw), &object)
	if err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", name, err)
	}

	return object, nil
}

// NewCommand builds the flowpilot command tree.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:                  "flowpilot",
		Usage:                 "Drive conversational workflows from the command line",
		Version:               version,
		EnableShellCompletion: true,
		Writer:                os.Stdout,
		Flags:                 cmd.ConfigFlags(),
		Commands: []*cli.Command{
			detectCommand(),
			generateCommand(),
			showCommand(),
			nextCommand(),
			completeCommand(),
			failCommand(),
			executeCommand(),
			missingCommand(),
			validateCommand(),
			strategyCommand(),
			outcomeCommand(),
			optimizeCommand(),
			cancelCommand(),
			templateCommand(),
			profileCommand(),
			mcpCommand(),
		},
	}
}

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "Check whether a message calls for a workflow",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "capability", Usage: "Capability the caller offers (repeatable)"},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			text, err := argument(command, 0, "text")
			if err != nil {
				return err
			}

			template, err := runtime.Engine.DetectWorkflowNeed(ctx, text, trigger.Context{
				Capabilities: command.StringSlice("capability"),
			})
			if err != nil {
				return err
			}

			return printJSON(command, map[string]any{"detected": template != nil, "template": template})
		}),
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Instantiate a template for a conversation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "template", Value: models.BuiltinSchedulingTemplateID, Usage: "Template id"},
			&cli.StringFlag{Name: "conversation", Required: true, Usage: "Conversation id"},
			&cli.StringFlag{Name: "user", Usage: "User id"},
			&cli.StringFlag{Name: "data", Usage: "Known data as a JSON object"},
			&cli.StringFlag{Name: "timezone", Usage: "IANA timezone of the user"},
			&cli.StringFlag{Name: "language", Usage: "Conversation language"},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			existing, err := jsonObject(command, "data")
			if err != nil {
				return err
			}

			template, err := runtime.Engine.GetTemplate(ctx, command.String("template"))
			if err != nil {
				return err
			}

			generation, err := runtime.Engine.GenerateWorkflow(ctx, template, workflow.Input{
				ConversationID: command.String("conversation"),
				UserID:         command.String("user"),
				Context: models.WorkflowContext{
					ExistingData: existing,
					Timezone:     command.String("timezone"),
					Language:     command.String("language"),
				},
			})
			if err != nil {
				return err
			}

			return printJSON(command, generation)
		}),
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a workflow with its tasks",
		ArgsUsage: "<workflow-id>",
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			workflowID, err := argument(command, 0, "workflow-id")
			if err != nil {
				return err
			}

			state, err := runtime.Engine.GetWorkflow(ctx, workflowID)
			if err != nil {
				return err
			}

			return printJSON(command, state)
		}),
	}
}

func nextCommand() *cli.Command {
	return &cli.Command{
		Name:      "next",
		Usage:     "Print the next runnable task",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "claim", Usage: "Mark the task active"},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			workflowID, err := argument(command, 0, "workflow-id")
			if err != nil {
				return err
			}

			var task *models.WorkflowTask

			if command.Bool("claim") {
				task, err = runtime.Engine.ClaimNextTask(ctx, workflowID)
			} else {
				task, err = runtime.Engine.GetNextTask(ctx, workflowID)
			}

			if err != nil {
				return err
			}

			return printJSON(command, task)
		}),
	}
}

func completeCommand() *cli.Command {
	return &cli.Command{
		Name:      "complete",
		Usage:     "Complete a task with the data it gathered",
		ArgsUsage: "<task-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data", Usage: "Collected data as a JSON object"},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			taskID, err := argument(command, 0, "task-id")
			if err != nil {
				return err
			}

			data, err := jsonObject(command, "data")
			if err != nil {
				return err
			}

			task, err := runtime.Engine.CompleteTask(ctx, taskID, data)
			if err != nil {
				return err
			}

			return printJSON(command, task)
		}),
	}
}

func failCommand() *cli.Command {
	return &cli.Command{
		Name:      "fail",
		Usage:     "Record a failed attempt of a task",
		ArgsUsage: "<task-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reason", Required: true},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			taskID, err := argument(command, 0, "task-id")
			if err != nil {
				return err
			}

			task, err := runtime.Engine.FailTask(ctx, taskID, command.String("reason"))
			if err != nil {
				return err
			}

			return printJSON(command, task)
		}),
	}
}

func executeCommand() *cli.Command {
	return &cli.Command{
		Name:      "execute",
		Usage:     "Run an execute task through the action executor",
		ArgsUsage: "<task-id>",
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			taskID, err := argument(command, 0, "task-id")
			if err != nil {
				return err
			}

			report, err := runtime.Engine.ExecuteTask(ctx, taskID)
			if err != nil {
				return err
			}

			return printJSON(command, report)
		}),
	}
}

func missingCommand() *cli.Command {
	return &cli.Command{
		Name:      "missing",
		Usage:     "List what a task still needs and the questions to ask",
		ArgsUsage: "<workflow-id> <task-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tone", Value: string(models.ToneFriendly), Usage: "friendly, professional, casual or urgent"},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			workflowID, err := argument(command, 0, "workflow-id")
			if err != nil {
				return err
			}

			taskID, err := argument(command, 1, "task-id")
			if err != nil {
				return err
			}

			requirements, err := runtime.Engine.IdentifyMissingInfo(ctx, workflowID, taskID)
			if err != nil {
				return err
			}

			prompts := runtime.Engine.GeneratePrompts(ctx, requirements, information.PromptContext{
				Tone: models.Tone(command.String("tone")),
			})

			return printJSON(command, map[string]any{"requirements": requirements, "prompts": prompts})
		}),
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate and normalize one answer",
		ArgsUsage: "<value>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "field", Required: true},
			&cli.StringFlag{Name: "type", Value: string(models.FieldTypeText)},
			&cli.BoolFlag{Name: "required"},
			&cli.StringSliceFlag{Name: "option", Usage: "Allowed choice for select fields (repeatable)"},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			result := runtime.Engine.ValidateInfo(ctx, command.Args().First(), models.InfoRequirement{
				Field:    command.String("field"),
				Type:     models.FieldType(command.String("type")),
				Required: command.Bool("required"),
				Options:  command.StringSlice("option"),
			})

			return printJSON(command, result)
		}),
	}
}

func strategyCommand() *cli.Command {
	return &cli.Command{
		Name:      "strategy",
		Usage:     "Decide how to continue with the data collected so far",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data", Usage: "Collected data as a JSON object"},
			&cli.BoolFlag{Name: "allow-inference"},
			&cli.BoolFlag{Name: "force"},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			workflowID, err := argument(command, 0, "workflow-id")
			if err != nil {
				return err
			}

			collected, err := jsonObject(command, "data")
			if err != nil {
				return err
			}

			decision, err := runtime.Engine.DetermineStrategy(ctx, workflowID, collected, information.StrategyOptions{
				AllowInference: command.Bool("allow-inference"),
				ForceProceed:   command.Bool("force"),
			})
			if err != nil {
				return err
			}

			return printJSON(command, decision)
		}),
	}
}

func outcomeCommand() *cli.Command {
	return &cli.Command{
		Name:      "outcome",
		Usage:     "Finish a workflow and learn from it",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "success", Usage: "The workflow reached its goal"},
			&cli.StringFlag{Name: "reason"},
			&cli.IntFlag{Name: "rating", Usage: "User rating from 1 to 5"},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			workflowID, err := argument(command, 0, "workflow-id")
			if err != nil {
				return err
			}

			var feedback *models.Feedback
			if command.IsSet("reason") || command.IsSet("rating") {
				feedback = &models.Feedback{Reason: command.String("reason"), Rating: command.Int("rating")}
			}

			err = runtime.Engine.RecordOutcome(ctx, workflowID, command.Bool("success"), feedback)
			if err != nil {
				return err
			}

			state, err := runtime.Engine.GetWorkflow(ctx, workflowID)
			if err != nil {
				return err
			}

			return printJSON(command, state.Workflow)
		}),
	}
}

func optimizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "optimize",
		Usage:     "Suggest changes to the template of a workflow",
		ArgsUsage: "<workflow-id>",
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			workflowID, err := argument(command, 0, "workflow-id")
			if err != nil {
				return err
			}

			suggestions, err := runtime.Engine.SuggestOptimizations(ctx, workflowID)
			if err != nil {
				return err
			}

			return printJSON(command, suggestions)
		}),
	}
}

func cancelCommand() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Abandon a workflow",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reason"},
		},
		Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
			workflowID, err := argument(command, 0, "workflow-id")
			if err != nil {
				return err
			}

			return runtime.Engine.CancelWorkflow(ctx, workflowID, command.String("reason"))
		}),
	}
}

func templateCommand() *cli.Command {
	return &cli.Command{
		Name:  "template",
		Usage: "Manage workflow templates",
		Commands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "Store a template read from a JSON file",
				ArgsUsage: "<file>",
				Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
					path, err := argument(command, 0, "file")
					if err != nil {
						return err
					}

					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("failed to read template: %w", err)
					}

					var template models.WorkflowTemplate

					err = json.Unmarshal(data, &template)
					if err != nil {
						return fmt.Errorf("failed to decode template: %w", err)
					}

					err = runtime.Engine.SaveTemplate(ctx, &template)
					if err != nil {
						return err
					}

					return printJSON(command, template)
				}),
			},
			{
				Name:      "show",
				Usage:     "Print a template",
				ArgsUsage: "<template-id>",
				Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
					id, err := argument(command, 0, "template-id")
					if err != nil {
						return err
					}

					template, err := runtime.Engine.GetTemplate(ctx, id)
					if err != nil {
						return err
					}

					return printJSON(command, template)
				}),
			},
		},
	}
}

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage user profiles kept in Redis",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Write profile attributes for a user",
				ArgsUsage: "<user-id> <key=value>...",
				Action: withRuntime(func(ctx context.Context, command *cli.Command, runtime *cmd.Runtime) error {
					if runtime.Redis == nil {
						return errRedisRequired
					}

					userID, err := argument(command, 0, "user-id")
					if err != nil {
						return err
					}

					attributes := map[string]string{}

					for _, pair := range command.Args().Tail() {
						key, value, ok := strings.Cut(pair, "=")
						if !ok || key == "" {
							return fmt.Errorf("attribute %q must look like key=value", pair)
						}

						attributes[key] = value
					}

					store := redis.NewProfileStore(runtime.Redis)

					err = store.SetProfile(ctx, userID, attributes)
					if err != nil {
						return err
					}

					profile, err := store.Profile(ctx, userID)
					if err != nil {
						return err
					}

					return printJSON(command, profile)
				}),
			},
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the engine as MCP tools on stdin and stdout",
		Action: withRuntime(func(ctx context.Context, _ *cli.Command, runtime *cmd.Runtime) error {
			return mcpserver.NewServer(runtime.Engine, version, log.WithModule("cli")).Run(ctx)
		}),
	}
}
