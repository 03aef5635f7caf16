// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solbet-labs/keeper/ledger"
	"github.com/solbet-labs/keeper/lib/game"
)

// Submitter sends a transaction and waits for confirmation.
// *ledger.Client implements it.
type Submitter interface {
	SubmitAndConfirm(ctx context.Context, instructions []ledger.Instruction, signers ...ledger.Signer) (ledger.Signature, error)
}

// Outcome is the result of a successful Execute.
type Outcome struct {
	// Signature is the confirmed transaction id. Zero in dry-run mode.
	Signature ledger.Signature
	// Strategy names the transfer strategy used.
	Strategy     string
	Instructions int
	DryRun       bool
}

// Executor turns plans into submitted transactions.
type Executor struct {
	submitter Submitter
	program   game.Program
	signer    ledger.Signer
	dryRun    bool
	logger    *slog.Logger
}

// NewExecutor returns an executor that signs and pays with signer. In
// dry-run mode instructions are built and logged but never submitted.
func NewExecutor(submitter Submitter, program game.Program, signer ledger.Signer, dryRun bool, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		submitter: submitter,
		program:   program,
		signer:    signer,
		dryRun:    dryRun,
		logger:    logger,
	}
}

// Execute builds and submits plan for g. Errors are always *Failure.
func (e *Executor) Execute(ctx context.Context, plan Plan, g game.Game) (Outcome, error) {
	instructions, strategy, err := e.Instructions(plan, g)
	if err != nil {
		return Outcome{}, ClassifyError(err)
	}
	e.logger.Debug("built instructions",
		"game", g.Address.String(),
		"action", plan.Action.String(),
		"strategy", strategy,
		"instructions", len(instructions),
	)
	outcome := Outcome{
		Strategy:     strategy,
		Instructions: len(instructions),
		DryRun:       e.dryRun,
	}
	if e.dryRun {
		return outcome, nil
	}

	signature, err := e.submitter.SubmitAndConfirm(ctx, instructions, e.signer)
	if err != nil {
		return outcome, ClassifyError(err)
	}
	outcome.Signature = signature
	return outcome, nil
}

// Instructions builds the instructions for plan without submitting
// them, and names the transfer strategy they use.
func (e *Executor) Instructions(plan Plan, g game.Game) ([]ledger.Instruction, string, error) {
	config := g.Phase.GameConfig()
	strategy := strategyFor(e.program, config)

	var (
		instructions []ledger.Instruction
		err          error
	)
	switch plan.Action {
	case ActionJoin:
		instructions, err = e.join(plan, g, strategy)
	case ActionExpireAndSettle:
		instructions, err = e.expireAndSettle(g, strategy)
	case ActionSettle:
		instructions, err = e.settle(g, strategy)
	case ActionReclaimRent:
		instructions, err = e.reclaimRent(g, strategy)
	default:
		err = fmt.Errorf("reconcile: nothing to execute for action %s", plan.Action)
	}
	if err != nil {
		return nil, strategy.Name(), err
	}
	return instructions, strategy.Name(), nil
}

func (e *Executor) join(plan Plan, g game.Game, strategy transferStrategy) ([]ledger.Instruction, error) {
	if _, ok := g.Phase.(game.AcceptingChallenge); !ok {
		return nil, phaseMismatch(ActionJoin, g.Phase)
	}
	self := e.signer.PublicKey()
	funding, err := strategy.Funding(self)
	if err != nil {
		return nil, err
	}
	return []ledger.Instruction{
		e.program.JoinGame(game.JoinGameAccounts{
			Player:          self,
			Game:            g.Address,
			PlayerFunding:   funding,
			Authority:       e.program.Authority(g.Address),
			Escrow:          strategy.Escrow(g.Address),
			TransferProgram: strategy.TransferProgram(),
		}, plan.Choice, nil),
	}, nil
}

// expireAndSettle names the side that failed to act and settles in
// the same transaction. An expired challenge pays player1 on both
// sides; an expired reveal forfeits the first player still committed.
func (e *Executor) expireAndSettle(g game.Game, strategy transferStrategy) ([]ledger.Instruction, error) {
	var expired, player1, player2 ledger.Address
	switch state := g.Phase.(type) {
	case game.AcceptingChallenge:
		player1 = state.Player1.Address()
		player2 = player1
		expired = player1
	case game.AcceptingReveal:
		player1 = state.Player1.Address()
		player2 = state.Player2.Address()
		expired = player1
		if state.Player1.HasRevealed() && !state.Player2.HasRevealed() {
			expired = player2
		}
	default:
		return nil, phaseMismatch(ActionExpireAndSettle, g.Phase)
	}

	settle, err := e.settleInstruction(g.Address, player1, player2, strategy)
	if err != nil {
		return nil, err
	}
	return []ledger.Instruction{e.program.ExpireGame(g.Address, expired), settle}, nil
}

func (e *Executor) settle(g game.Game, strategy transferStrategy) ([]ledger.Instruction, error) {
	state, ok := g.Phase.(game.AcceptingSettle)
	if !ok {
		return nil, phaseMismatch(ActionSettle, g.Phase)
	}
	settle, err := e.settleInstruction(g.Address, state.Player1.Address(), state.Player2.Address(), strategy)
	if err != nil {
		return nil, err
	}
	return []ledger.Instruction{settle}, nil
}

func (e *Executor) settleInstruction(gameAddress, player1, player2 ledger.Address, strategy transferStrategy) (ledger.Instruction, error) {
	recipient1, err := strategy.Funding(player1)
	if err != nil {
		return ledger.Instruction{}, err
	}
	recipient2, err := strategy.Funding(player2)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return e.program.SettleGame(game.SettleGameAccounts{
		Game:             gameAddress,
		Player1Recipient: recipient1,
		Player2Recipient: recipient2,
		Authority:        e.program.Authority(gameAddress),
		Escrow:           strategy.Escrow(gameAddress),
		TransferProgram:  strategy.TransferProgram(),
	}), nil
}

func (e *Executor) reclaimRent(g game.Game, strategy transferStrategy) ([]ledger.Instruction, error) {
	if _, ok := g.Phase.(game.Settled); !ok {
		return nil, phaseMismatch(ActionReclaimRent, g.Phase)
	}
	return []ledger.Instruction{
		e.program.CleanGame(game.CleanGameAccounts{
			Game:            g.Address,
			Authority:       e.program.Authority(g.Address),
			Escrow:          strategy.Escrow(g.Address),
			Cleaner:         e.signer.PublicKey(),
			TransferProgram: strategy.TransferProgram(),
		}),
	}, nil
}

func phaseMismatch(action Action, phase game.Phase) error {
	return fmt.Errorf("reconcile: %s does not apply to a game in phase %s", action, phase.Name())
}
