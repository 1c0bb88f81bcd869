// Package admin implements the operator subcommands of simplemoney-admin.
package admin

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"simplemoney/internal/challenges"
	"simplemoney/internal/log"
	"simplemoney/internal/services"

	"github.com/google/subcommands"
)

// Env is what the subcommands run against. Open returns a ledger and the
// function that releases it.
type Env struct {
	Out      io.Writer
	Currency string

	Open       func(ctx context.Context) (*services.LedgerService, func() error, error)
	Migrate    func(ctx context.Context) error
	Reconciler services.ReconcilerConfig
}

// Register adds every admin subcommand to c.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(&reconcileCmd{env: env}, "ledger")
	c.Register(&balanceCmd{env: env}, "ledger")
	c.Register(&catalogCmd{env: env}, "challenges")
	c.Register(&migrateCmd{env: env}, "storage")
}

func (e *Env) withLedger(ctx context.Context, fn func(*services.LedgerService) error) subcommands.ExitStatus {
	logger := log.ForComponent(log.ComponentAdmin)
	ledger, closeFn, err := e.Open(ctx)
	if err != nil {
		fmt.Fprintf(e.Out, "open backend: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()
	if err := fn(ledger); err != nil {
		fmt.Fprintln(e.Out, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type reconcileCmd struct {
	env  *Env
	user string
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "re-derive balance, challenge progress and rewards" }
func (*reconcileCmd) Usage() string {
	return `reconcile [-user <id>]

  Runs the balance, challenge and reward stages for one user, or for every
  known user when -user is omitted. Safe to repeat.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Reconcile only this user id.")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.withLedger(ctx, func(ledger *services.LedgerService) error {
		if user := strings.TrimSpace(c.user); user != "" {
			res, err := ledger.Reconcile(ctx, user)
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", user, err)
			}
			fmt.Fprintf(c.env.Out, "user %s: balance %s, %d advanced, %d rewarded\n",
				user, res.Balance.Labeled(c.env.Currency), len(res.Advanced), len(res.Rewarded))
			return nil
		}

		stats, err := services.NewReconciler(ledger, c.env.Reconciler).ReconcileAll(ctx)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		fmt.Fprintf(c.env.Out, "%d users, %d failed, %d advanced, %d rewarded\n",
			stats.Users, stats.Failed, stats.Advanced, stats.Rewarded)
		if stats.Failed > 0 {
			return fmt.Errorf("%d users could not be reconciled", stats.Failed)
		}
		return nil
	})
}

type balanceCmd struct {
	env  *Env
	user string
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "print a user's balance, points and achievements" }
func (*balanceCmd) Usage() string {
	return `balance -user <id>
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User id (required).")
}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if strings.TrimSpace(c.user) == "" {
		fmt.Fprint(c.env.Out, c.Usage())
		return subcommands.ExitUsageError
	}
	return c.env.withLedger(ctx, func(ledger *services.LedgerService) error {
		p, err := ledger.Profile(ctx, strings.TrimSpace(c.user))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.env.Out, "balance: %s\npoints: %d\n", p.Balance.Labeled(c.env.Currency), p.Points)
		for _, a := range p.Achievements {
			fmt.Fprintf(c.env.Out, "  %s  %s (%s)\n", a.Date.Format("2006-01-02"), a.Title, a.Description)
		}
		return nil
	})
}

type catalogCmd struct {
	env *Env
}

func (*catalogCmd) Name() string     { return "catalog" }
func (*catalogCmd) Synopsis() string { return "list the challenge catalog" }
func (*catalogCmd) Usage() string {
	return `catalog
`
}

func (*catalogCmd) SetFlags(*flag.FlagSet) {}

func (c *catalogCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	tw := tabwriter.NewWriter(c.env.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTARGET\tREWARD\tMETRIC")
	for _, d := range challenges.Catalog() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", d.ID, d.Title, d.Target.String(), d.Reward, d.Metric)
	}
	if err := tw.Flush(); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type migrateCmd struct {
	env *Env
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply schema migrations for the configured backend" }
func (*migrateCmd) Usage() string {
	return `migrate
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.env.Migrate(ctx); err != nil {
		fmt.Fprintf(c.env.Out, "migrate: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.env.Out, "migrations applied")
	return subcommands.ExitSuccess
}
