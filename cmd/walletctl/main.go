package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/walletd/pkg/cli"
	"github.com/platinummonkey/walletd/pkg/config"
	"github.com/platinummonkey/walletd/pkg/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Operator output goes to stdout; logs stay on stderr and quiet.
	level := cfg.Observability.LogLevel
	if os.Getenv("WALLETD_LOG_LEVEL") == "" {
		level = "warn"
	}
	logger := observability.NewLogger(level, cfg.Observability.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.NewApp(cfg, logger))
	if err := root.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
