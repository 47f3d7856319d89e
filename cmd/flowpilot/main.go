// Package main provides the flowpilot command line: it drives workflows step by
// step against the configured store and serves the engine as MCP tools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewCommand().Run(ctx, os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowpilot:", err)
		os.Exit(1)
	}
}
