// Package main provides the flowpilot HTTP API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowpilot/pkg/cmd"
	"github.com/dukex/flowpilot/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "flowpilot-api",
		Usage:                 "Serve the workflow orchestration engine over HTTP",
		EnableShellCompletion: true,
		Flags: append(cmd.ConfigFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Sources: cli.EnvVars("PORT"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := cmd.LoadConfig(ctx, command)
			if err != nil {
				return err
			}

			log.Setup(cfg.LogLevel)

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Flowpilot API")

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

			return NewAPI(logger, runtime.Engine, runtime.Store).Start(ctx, cfg.Port)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := command.Run(ctx, os.Args)
	if err != nil {
		log.WithModule("api").Error("API stopped", "error", err)
		os.Exit(1)
	}
}
