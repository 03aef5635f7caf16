// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/solbet-labs/keeper/ledger"
	"github.com/solbet-labs/keeper/lib/clock"
	"github.com/solbet-labs/keeper/lib/game"
)

// Ledger is the part of the ledger client a pass uses.
// *ledger.Client implements it.
type Ledger interface {
	Submitter
	GetProgramAccounts(ctx context.Context, program ledger.Address, filters ...ledger.MemcmpFilter) ([]ledger.KeyedAccount, error)
	GetSlot(ctx context.Context) (uint64, error)
}

// ErrPassRunning is returned by TryRunPass when another pass holds the
// keeper.
var ErrPassRunning = errors.New("reconcile: a pass is already running")

// Config holds configuration for creating a Keeper.
type Config struct {
	Ledger  Ledger
	Program game.Program
	// Signer is the keeper's wallet: it joins games, pays fees, and
	// receives reclaimed rent.
	Signer ledger.Signer
	Policy Policy
	// Cache persists across passes. If nil, a cache of
	// DefaultSkipCacheSize is created.
	Cache  *SkipCache
	DryRun bool
	// Choose picks the move for each join. If nil, moves are uniformly
	// random.
	Choose func() game.Choice
	// Clock timestamps pass summaries. If nil, the real clock is used.
	Clock  clock.Clock
	Logger *slog.Logger
}

// PassSummary reports what one pass did.
type PassSummary struct {
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Slot     uint64        `json:"slot"`
	Accounts int           `json:"accounts"`
	// Skipped counts skip-set hits and games whose action was already
	// handled.
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
	// Planned, Succeeded, and Failed are keyed by action name; Failed
	// also counts by failure kind in FailedKinds.
	Planned     map[string]int `json:"planned,omitempty"`
	Succeeded   map[string]int `json:"succeeded,omitempty"`
	Failed      map[string]int `json:"failed,omitempty"`
	FailedKinds map[string]int `json:"failed_kinds,omitempty"`
	DryRun      bool           `json:"dry_run,omitempty"`
	// Error is set when the pass could not list accounts or read the
	// slot.
	Error string `json:"error,omitempty"`
}

func newPassSummary(started time.Time, dryRun bool) *PassSummary {
	return &PassSummary{
		Started:     started,
		Planned:     make(map[string]int),
		Succeeded:   make(map[string]int),
		Failed:      make(map[string]int),
		FailedKinds: make(map[string]int),
		DryRun:      dryRun,
	}
}

// Keeper runs reconciliation passes.
type Keeper struct {
	ledger   Ledger
	program  game.Program
	planner  *Planner
	executor *Executor
	cache    *SkipCache
	clock    clock.Clock
	logger   *slog.Logger

	// passMu serializes passes.
	passMu sync.Mutex

	lastMu sync.Mutex
	last   *PassSummary
}

// New creates a Keeper after validating config.
func New(config Config) (*Keeper, error) {
	if config.Ledger == nil {
		return nil, fmt.Errorf("reconcile: Ledger is required")
	}
	if config.Signer == nil {
		return nil, fmt.Errorf("reconcile: Signer is required")
	}
	if config.Program.ID.IsZero() {
		return nil, fmt.Errorf("reconcile: Program.ID is required")
	}
	cache := config.Cache
	if cache == nil {
		cache = NewSkipCache(DefaultSkipCacheSize)
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Keeper{
		ledger:   config.Ledger,
		program:  config.Program,
		planner:  NewPlanner(config.Policy, config.Signer.PublicKey(), config.Choose),
		executor: NewExecutor(config.Ledger, config.Program, config.Signer, config.DryRun, logger),
		cache:    cache,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Cache returns the keeper's skip cache.
func (k *Keeper) Cache() *SkipCache { return k.cache }

// LastPass returns the summary of the most recent completed pass, or
// nil before the first pass finishes.
func (k *Keeper) LastPass() *PassSummary {
	k.lastMu.Lock()
	defer k.lastMu.Unlock()
	return k.last
}

// RunPass runs one pass, waiting for any pass already in progress to
// finish first. The error is non-nil only when the pass could not list
// accounts or read the slot, or ctx was cancelled mid-pass; per-game
// failures are counted in the summary.
func (k *Keeper) RunPass(ctx context.Context) (*PassSummary, error) {
	k.passMu.Lock()
	defer k.passMu.Unlock()
	return k.runPass(ctx)
}

// TryRunPass runs one pass unless one is already running, in which
// case it returns ErrPassRunning without waiting.
func (k *Keeper) TryRunPass(ctx context.Context) (*PassSummary, error) {
	if !k.passMu.TryLock() {
		return nil, ErrPassRunning
	}
	defer k.passMu.Unlock()
	return k.runPass(ctx)
}

func (k *Keeper) runPass(ctx context.Context) (*PassSummary, error) {
	summary := newPassSummary(k.clock.Now(), k.executor.dryRun)
	err := k.pass(ctx, summary)
	summary.Duration = k.clock.Now().Sub(summary.Started)
	if err != nil {
		summary.Error = err.Error()
		k.logger.Error("reconciliation pass failed",
			"error", err,
			"accounts", summary.Accounts,
			"duration", summary.Duration,
		)
	} else {
		k.logger.Info("reconciliation pass complete",
			"slot", summary.Slot,
			"accounts", summary.Accounts,
			"skipped", summary.Skipped,
			"malformed", summary.Malformed,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"duration", summary.Duration,
		)
	}

	k.lastMu.Lock()
	k.last = summary
	k.lastMu.Unlock()
	return summary, err
}

func (k *Keeper) pass(ctx context.Context, summary *PassSummary) error {
	accounts, err := k.ledger.GetProgramAccounts(ctx, k.program.ID, k.program.ListFilter())
	if err != nil {
		return fmt.Errorf("listing game accounts: %w", err)
	}
	summary.Accounts = len(accounts)

	slot, err := k.ledger.GetSlot(ctx)
	if err != nil {
		return fmt.Errorf("reading current slot: %w", err)
	}
	summary.Slot = slot

	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		k.handleAccount(ctx, account, slot, summary)
	}
	return nil
}

// handleAccount runs one game through decode, plan, and execute. It
// never returns an error: every failure is classified and counted.
func (k *Keeper) handleAccount(ctx context.Context, account ledger.KeyedAccount, slot uint64, summary *PassSummary) {
	logger := k.logger.With("game", account.Address.String())
	defer func() {
		if recovered := recover(); recovered != nil {
			summary.Failed[ActionNone.String()]++
			summary.FailedKinds[Unknown.String()]++
			logger.Error("panic while handling game", "panic", fmt.Sprint(recovered))
		}
	}()

	if k.cache.ShouldSkip(account.Address) {
		summary.Skipped++
		logger.Debug("game in skip set")
		return
	}

	g, err := game.DecodeGame(account)
	if err != nil {
		summary.Malformed++
		logger.Warn("cannot classify game account", "error", err)
		return
	}

	plan := k.planner.Plan(g.Phase, slot)
	logger = logger.With("phase", g.Phase.Name(), "action", plan.Action.String())
	if plan.Action == ActionNone {
		logger.Debug("no action", "reason", plan.Reason)
		return
	}
	if k.cache.Handled(g.Address, plan.Action) {
		summary.Skipped++
		logger.Debug("action already handled")
		return
	}
	summary.Planned[plan.Action.String()]++

	attrs := []any{"reason", plan.Reason, "wager", g.Phase.GameConfig().WagerAmount, "mint", g.Phase.GameConfig().Mint.String()}
	if plan.Action == ActionJoin {
		attrs = append(attrs, "choice", plan.Choice.String())
	}
	logger.Info("attempting action", attrs...)

	outcome, err := k.executor.Execute(ctx, plan, g)
	if err != nil {
		k.recordFailure(logger, g, plan, err, summary)
		return
	}

	summary.Succeeded[plan.Action.String()]++
	if outcome.DryRun {
		logger.Info("dry run: action not submitted",
			"strategy", outcome.Strategy,
			"instructions", outcome.Instructions,
		)
		return
	}
	logger.Info("action succeeded",
		"signature", outcome.Signature.String(),
		"strategy", outcome.Strategy,
	)
	if plan.Action == ActionJoin || plan.Action == ActionReclaimRent {
		k.cache.MarkHandled(g.Address, plan.Action)
	}
}

func (k *Keeper) recordFailure(logger *slog.Logger, g game.Game, plan Plan, err error, summary *PassSummary) {
	failure := ClassifyError(err)
	summary.Failed[plan.Action.String()]++
	summary.FailedKinds[failure.Kind.String()]++

	attrs := []any{"failure_kind", failure.Kind.String(), "error", failure.Err}
	if failure.ErrorNumber != 0 {
		attrs = append(attrs, "error_number", failure.ErrorNumber, "error_code", failure.ErrorCode)
	}

	switch failure.Kind {
	case UnrecoverableAccountState:
		k.cache.MarkSkip(g.Address)
		logger.Warn("action failed permanently, skipping game", attrs...)
	case AlreadyFinalizedElsewhere:
		logger.Info("game already finalized by another actor", attrs...)
	case TransientNetwork:
		logger.Warn("action failed, will retry next pass", attrs...)
	case MalformedAccount:
		logger.Warn("action failed on unexpected account shape", attrs...)
	default:
		attrs = append(attrs, "fingerprint", failure.Fingerprint)
		logger.Error("action failed with unrecognized error", attrs...)
	}
}
