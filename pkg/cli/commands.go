package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/platinummonkey/walletd/pkg/audit"
	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/contextkeys"
	"github.com/platinummonkey/walletd/pkg/orgs"
	"github.com/platinummonkey/walletd/pkg/storage"
	"github.com/platinummonkey/walletd/pkg/storage/postgres"
)

// operatorRole is the role attributed to CLI mutations in the audit log.
const operatorRole = "super_admin"

func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Err)
	return fs
}

// parse parses args and rejects positional leftovers.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ErrUsage
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", ErrUsage, fs.Args())
	}
	return nil
}

func required(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: --%s is required", ErrUsage, name)
	}
	return nil
}

func newMigrateCommand(a *App) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Flags:       a.newFlagSet("migrate"),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := parse(cmd.Flags, args); err != nil {
			return err
		}
		if a.Config.Storage.Type != storage.TypePostgres {
			return fmt.Errorf("migrate requires postgres storage, configured %q", a.Config.Storage.Type)
		}

		storageCfg := a.Config.Storage
		storageCfg.AutoMigrate = false
		backend, err := a.Open(ctx, storageCfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		applied, err := postgres.Migrate(ctx, backend.DB, a.Logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "Applied %d migration(s)\n", applied)
		return nil
	}
	return cmd
}

func newOrgCreateCommand(a *App) *Command {
	cmd := &Command{
		Name:        "org-create",
		Description: "Create an organization and its wallet",
		Flags:       a.newFlagSet("org-create"),
	}
	name := cmd.Flags.String("name", "", "Organization name")
	currency := cmd.Flags.String("currency", "", "Wallet currency (defaults to the configured currency)")
	actor := cmd.Flags.String("actor", "walletctl", "Actor id recorded in the audit log")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := parse(cmd.Flags, args); err != nil {
			return err
		}
		if err := required("name", *name); err != nil {
			return err
		}
		ctx = contextkeys.WithActor(ctx, *actor, operatorRole)

		return a.withService(ctx, func(backend *storage.Backend, _ *billing.Service) error {
			org, wallet, err := backend.Organizations.CreateOrganization(ctx, &orgs.CreateOrgRequest{Name: *name, Currency: *currency})
			if err != nil {
				return err
			}

			event := audit.NewEvent(ctx, audit.ActionOrganizationCreate, audit.ResourceTypeOrganization, org.ID)
			event.OrganizationID = org.ID
			event.Message = "organization created via walletctl"
			a.recordAudit(ctx, backend, event)

			return a.printJSON(map[string]any{"organization": org, "wallet": wallet})
		})
	}
	return cmd
}

func newWalletCommand(a *App) *Command {
	cmd := &Command{
		Name:        "wallet",
		Description: "Show a wallet and its latest transactions",
		Flags:       a.newFlagSet("wallet"),
	}
	orgID := cmd.Flags.String("org", "", "Organization id")
	limit := cmd.Flags.Int("limit", 10, "Number of transactions to show")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := parse(cmd.Flags, args); err != nil {
			return err
		}
		if err := required("org", *orgID); err != nil {
			return err
		}

		return a.withService(ctx, func(_ *storage.Backend, svc *billing.Service) error {
			wallet, err := svc.GetWallet(ctx, *orgID)
			if err != nil {
				return err
			}
			page, err := svc.ListTransactions(ctx, *orgID, billing.TransactionFilter{Limit: *limit})
			if err != nil {
				return err
			}
			return a.printJSON(map[string]any{"wallet": wallet, "transactions": page.Transactions})
		})
	}
	return cmd
}

type adjustmentFlags struct {
	orgID  *string
	amount *int64
	reason *string
	actor  *string
}

func (a *App) adjustmentCommand(name, description string) (*Command, *adjustmentFlags) {
	cmd := &Command{
		Name:        name,
		Description: description,
		Flags:       a.newFlagSet(name),
	}
	f := &adjustmentFlags{
		orgID:  cmd.Flags.String("org", "", "Organization id"),
		amount: cmd.Flags.Int64("amount", 0, "Amount in cents"),
		reason: cmd.Flags.String("reason", "", "Reason recorded on the transaction"),
		actor:  cmd.Flags.String("actor", "walletctl", "Actor id recorded as processed_by"),
	}
	return cmd, f
}

func (f *adjustmentFlags) validate() error {
	if err := required("org", *f.orgID); err != nil {
		return err
	}
	return required("reason", *f.reason)
}

func newCreditCommand(a *App) *Command {
	cmd, f := a.adjustmentCommand("credit", "Add funds to a wallet")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := parse(cmd.Flags, args); err != nil {
			return err
		}
		if err := f.validate(); err != nil {
			return err
		}
		ctx = contextkeys.WithActor(ctx, *f.actor, operatorRole)

		return a.withService(ctx, func(backend *storage.Backend, svc *billing.Service) error {
			txn, err := svc.Credit(ctx, billing.CreditRequest{
				OrganizationID: *f.orgID,
				Amount:         *f.amount,
				Description:    *f.reason,
				ActorID:        *f.actor,
			})
			if err != nil {
				return err
			}
			a.recordAudit(ctx, backend, adjustmentEvent(ctx, audit.ActionWalletCredit, txn))
			return a.printJSON(txn)
		})
	}
	return cmd
}

func newDebitCommand(a *App) *Command {
	cmd, f := a.adjustmentCommand("debit", "Remove funds from a wallet")
	allowNegative := cmd.Flags.Bool("allow-negative", false, "Allow the balance to go below zero")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := parse(cmd.Flags, args); err != nil {
			return err
		}
		if err := f.validate(); err != nil {
			return err
		}
		ctx = contextkeys.WithActor(ctx, *f.actor, operatorRole)

		return a.withService(ctx, func(backend *storage.Backend, svc *billing.Service) error {
			txn, err := svc.Debit(ctx, billing.DebitRequest{
				OrganizationID: *f.orgID,
				Amount:         *f.amount,
				Description:    *f.reason,
				ActorID:        *f.actor,
				AllowNegative:  *allowNegative,
			})
			if err != nil {
				return err
			}
			a.recordAudit(ctx, backend, adjustmentEvent(ctx, audit.ActionWalletDebit, txn))
			return a.printJSON(txn)
		})
	}
	return cmd
}

func adjustmentEvent(ctx context.Context, action audit.Action, txn *billing.Transaction) *audit.Event {
	event := audit.NewEvent(ctx, action, audit.ResourceTypeWallet, txn.ID)
	event.OrganizationID = txn.OrganizationID
	event.Message = txn.Description
	event.Changes = &audit.ChangeDetails{
		Before: map[string]any{"balance": txn.BalanceBefore},
		After:  map[string]any{"balance": txn.BalanceAfter, "amount": txn.Amount},
	}
	return event
}

func newRateCommand(a *App) *Command {
	cmd := &Command{
		Name:        "rate",
		Description: "Show or set the billing rate (cents per hour)",
		Flags:       a.newFlagSet("rate"),
	}
	set := cmd.Flags.Int64("set", -1, "New rate in cents per hour; omit to show the current rate")
	actor := cmd.Flags.String("actor", "walletctl", "Actor id recorded in the audit log")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := parse(cmd.Flags, args); err != nil {
			return err
		}
		ctx = contextkeys.WithActor(ctx, *actor, operatorRole)

		return a.withService(ctx, func(backend *storage.Backend, svc *billing.Service) error {
			previous, err := svc.GetRate(ctx)
			if *set < 0 {
				if err != nil {
					return err
				}
				return a.printJSON(map[string]int64{"rate_per_hour": previous})
			}
			if err != nil && !errors.Is(err, billing.ErrInvalidRate) {
				return err
			}

			if err := svc.SetRate(ctx, *set, *actor); err != nil {
				return err
			}
			event := audit.NewEvent(ctx, audit.ActionConfigUpdate, audit.ResourceTypeConfig, billing.RateConfigKey)
			event.Message = "billing rate updated via walletctl"
			event.Changes = &audit.ChangeDetails{
				Before: map[string]any{"rate_per_hour": previous},
				After:  map[string]any{"rate_per_hour": *set},
			}
			a.recordAudit(ctx, backend, event)
			return a.printJSON(map[string]int64{"rate_per_hour": *set})
		})
	}
	return cmd
}

func (a *App) recordAudit(ctx context.Context, backend *storage.Backend, event *audit.Event) {
	if err := backend.Audit.Log(ctx, event); err != nil {
		a.Logger.WithError(err).WithField("action", event.Action).Error("Failed to record audit event")
	}
}
