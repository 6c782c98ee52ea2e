package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/walletd/pkg/async"
	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/config"
	"github.com/platinummonkey/walletd/pkg/storage"
)

// ErrUsage is returned when a command is invoked with missing or bad
// arguments. The usage text has already been printed.
var ErrUsage = errors.New("invalid usage")

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// App carries what every command needs. Open is called once per command
// invocation; tests substitute a shared in-memory backend.
type App struct {
	Config *config.Config
	Logger logrus.FieldLogger
	Out    io.Writer
	Err    io.Writer
	Open   func(ctx context.Context, cfg storage.Config) (*storage.Backend, error)
}

// NewApp returns an App that opens the configured storage backend.
func NewApp(cfg *config.Config, logger logrus.FieldLogger) *App {
	return &App{
		Config: cfg,
		Logger: logger,
		Out:    os.Stdout,
		Err:    os.Stderr,
		Open: func(ctx context.Context, storageCfg storage.Config) (*storage.Backend, error) {
			return storage.Open(ctx, storageCfg, nil, logger)
		},
	}
}

// NewRootCommand creates the root command
func NewRootCommand(app *App) *Command {
	root := &Command{
		Name:        "walletctl",
		Description: "walletctl - operator tool for the walletd ledger",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("walletctl", flag.ContinueOnError),
	}
	root.Flags.SetOutput(app.Out)

	// Add subcommands
	root.Subcommands["migrate"] = newMigrateCommand(app)
	root.Subcommands["org-create"] = newOrgCreateCommand(app)
	root.Subcommands["wallet"] = newWalletCommand(app)
	root.Subcommands["credit"] = newCreditCommand(app)
	root.Subcommands["debit"] = newDebitCommand(app)
	root.Subcommands["rate"] = newRateCommand(app)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	out := c.Flags.Output()
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// withService opens the backend, builds the billing service and runs fn.
// Low-balance checks dispatched by debits finish before the backend closes.
func (a *App) withService(ctx context.Context, fn func(backend *storage.Backend, svc *billing.Service) error) error {
	backend, err := a.Open(ctx, a.Config.Storage)
	if err != nil {
		return err
	}
	defer backend.Close()

	dispatcher := async.NewDispatcher(a.Logger, a.Config.Billing.MonitorTimeout)
	defer dispatcher.Wait()

	svc := billing.NewService(backend.Stores, billing.ServiceConfig{
		DefaultRatePerHour: a.Config.Billing.DefaultRatePerHour,
		Dispatcher:         dispatcher,
		Logger:             a.Logger,
	})
	return fn(backend, svc)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
