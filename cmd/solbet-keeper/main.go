// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/solbet-labs/keeper/ledger"
	"github.com/solbet-labs/keeper/lib/clock"
	"github.com/solbet-labs/keeper/lib/config"
	"github.com/solbet-labs/keeper/lib/cron"
	"github.com/solbet-labs/keeper/lib/game"
	"github.com/solbet-labs/keeper/lib/keyfile"
	"github.com/solbet-labs/keeper/lib/process"
	"github.com/solbet-labs/keeper/lib/reconcile"
	"github.com/solbet-labs/keeper/lib/service"
	"github.com/solbet-labs/keeper/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		configPath  string
		once        bool
		dryRun      bool
		logLevel    string
		showVersion bool
	)

	flags := pflag.NewFlagSet("solbet-keeper", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to the keeper config file (default $"+config.EnvironmentVariable+")")
	flags.BoolVar(&once, "once", false, "run a single pass and exit")
	flags.BoolVar(&dryRun, "dry-run", false, "plan and log actions without submitting transactions")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if showVersion {
		fmt.Printf("solbet-keeper %s\n", version.Info())
		return nil
	}

	level, err := parseLogLevel(logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if dryRun {
		cfg.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}
	defer daemon.Close()

	if once {
		_, err := daemon.keeper.RunPass(ctx)
		return err
	}
	return daemon.Run(ctx)
}

func parseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", name, err)
	}
	return level, nil
}

// daemon owns the long-lived components of a running keeper.
type daemon struct {
	config   *config.Config
	schedule cron.Schedule
	program  game.Program
	client   *ledger.Client
	keypair  *keyfile.Keypair
	keeper   *reconcile.Keeper
	trigger  *trigger
	clock    clock.Clock
	logger   *slog.Logger
}

func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	schedule, err := cron.Parse(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	programID, err := ledger.ParseAddress(cfg.ProgramAddress)
	if err != nil {
		return nil, fmt.Errorf("program_address: %w", err)
	}
	policy, err := buildPolicy(cfg)
	if err != nil {
		return nil, err
	}

	clk := clock.Real()
	client, err := ledger.NewClient(ledger.ClientConfig{
		Endpoint:       cfg.LedgerEndpoint,
		HTTPClient:     &http.Client{},
		Logger:         logger,
		Commitment:     ledger.Commitment(cfg.Commitment),
		RequestTimeout: cfg.RequestTimeout,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Clock:          clk,
	})
	if err != nil {
		return nil, err
	}

	keypair, err := keyfile.Load(cfg.WalletKeyFile, cfg.WalletIdentityFile)
	if err != nil {
		return nil, err
	}

	program := game.Program{ID: programID}
	keeper, err := reconcile.New(reconcile.Config{
		Ledger:  client,
		Program: program,
		Signer:  keypair,
		Policy:  policy,
		Cache:   reconcile.NewSkipCache(cfg.SkipCacheMaxSize),
		DryRun:  cfg.DryRun,
		Clock:   clk,
		Logger:  logger,
	})
	if err != nil {
		keypair.Close()
		return nil, err
	}

	logger.Info("keeper configured",
		"version", version.Info(),
		"environment", string(cfg.Environment),
		"program", programID.String(),
		"wallet", keypair.PublicKey().String(),
		"schedule", cfg.Schedule,
		"enabled_actions", cfg.EnabledActions,
		"dry_run", cfg.DryRun,
	)

	return &daemon{
		config:   cfg,
		schedule: schedule,
		program:  program,
		client:   client,
		keypair:  keypair,
		keeper:   keeper,
		trigger:  newTrigger(),
		clock:    clk,
		logger:   logger,
	}, nil
}

// Run supervises the scheduler, the control socket, and the optional
// program subscription until ctx is cancelled or one of them fails.
func (d *daemon) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return runScheduler(ctx, d.keeper, d.schedule, d.trigger.C(), d.clock, d.logger)
	})

	if d.config.ControlSocket != "" {
		server := service.NewSocketServer(d.config.ControlSocket, d.logger)
		registerActions(server, d.keeper, d.clock.Now())
		group.Go(func() error { return server.Serve(ctx) })
	}

	if d.config.LedgerWSEndpoint != "" {
		subscription := ledger.SubscriptionConfig{
			Endpoint:   d.config.LedgerWSEndpoint,
			Program:    d.program.ID,
			Commitment: ledger.Commitment(d.config.Commitment),
			Filters:    []ledger.MemcmpFilter{d.program.ListFilter()},
			Logger:     d.logger,
		}
		group.Go(func() error {
			runSubscription(ctx, subscription, d.trigger, d.clock, d.logger)
			return nil
		})
	}

	d.logger.Info("keeper running", "control_socket", d.config.ControlSocket)
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	d.logger.Info("keeper stopped")
	return err
}

// Close releases the wallet key and idle connections.
func (d *daemon) Close() {
	d.client.CloseIdleConnections()
	if err := d.keypair.Close(); err != nil {
		d.logger.Warn("releasing wallet key", "error", err)
	}
}
