package main

import (
	"context"
	"flag"
	"os"
	"path"

	"simplemoney/internal/admin"
	"simplemoney/internal/backend"
	"simplemoney/internal/cli"
	"simplemoney/internal/log"
	"simplemoney/internal/services"

	"github.com/google/subcommands"
)

func main() {
	cfg := cli.MustLoadConfig()
	cli.SetupLogger(cfg.LogLevel, log.ComponentAdmin)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		os.Stderr.WriteString("invalid backend configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	// Admin commands never publish ledger events.
	backendConfig.AMQPURL = ""
	factory := backend.NewFactory()

	env := &admin.Env{
		Out:      os.Stdout,
		Currency: cfg.Currency,
		Open: func(ctx context.Context) (*services.LedgerService, func() error, error) {
			res, err := factory.CreateBackend(ctx, backendConfig)
			if err != nil {
				return nil, nil, err
			}
			return res.Ledger, res.Cleanup, nil
		},
		Migrate: func(ctx context.Context) error {
			return factory.Migrate(ctx, backendConfig)
		},
		Reconciler: services.ReconcilerConfig{
			Interval:    cfg.ReconcileInterval,
			Concurrency: cfg.ReconcileConcurrency,
		},
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	admin.Register(commander, env)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
