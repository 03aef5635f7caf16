// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"

	"github.com/solbet-labs/keeper/ledger"
	"github.com/solbet-labs/keeper/lib/game"
)

// transferStrategy resolves the accounts that move a game's stake.
type transferStrategy interface {
	// Name is logged with every action.
	Name() string
	// Funding returns the account that pays or receives funds on
	// behalf of owner.
	Funding(owner ledger.Address) (ledger.Address, error)
	// Escrow returns the account holding the game's stake.
	Escrow(gameAddress ledger.Address) ledger.Address
	// TransferProgram is the program that moves the funds.
	TransferProgram() ledger.Address
}

// strategyFor picks the transfer strategy from the game's mint: the
// system program id means native lamports held by the game authority,
// any other mint is held in the game's escrow token account.
func strategyFor(program game.Program, config game.Config) transferStrategy {
	if config.Mint == ledger.SystemProgramID {
		return nativeTransfer{program: program}
	}
	return escrowTokenTransfer{program: program, mint: config.Mint}
}

type nativeTransfer struct {
	program game.Program
}

func (nativeTransfer) Name() string { return "native" }

func (nativeTransfer) Funding(owner ledger.Address) (ledger.Address, error) { return owner, nil }

func (s nativeTransfer) Escrow(gameAddress ledger.Address) ledger.Address {
	return s.program.Authority(gameAddress)
}

func (nativeTransfer) TransferProgram() ledger.Address { return ledger.SystemProgramID }

type escrowTokenTransfer struct {
	program game.Program
	mint    ledger.Address
}

func (escrowTokenTransfer) Name() string { return "escrow_token" }

func (s escrowTokenTransfer) Funding(owner ledger.Address) (ledger.Address, error) {
	address, err := ledger.FindAssociatedTokenAddress(owner, s.mint)
	if err != nil {
		return ledger.Address{}, fmt.Errorf("token account for %s: %w", owner, err)
	}
	return address, nil
}

func (s escrowTokenTransfer) Escrow(gameAddress ledger.Address) ledger.Address {
	return s.program.Escrow(gameAddress)
}

func (escrowTokenTransfer) TransferProgram() ledger.Address { return ledger.TokenProgramID }
