// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package game

import (
	"fmt"

	"github.com/solbet-labs/keeper/ledger"
)

// Seeds for the per-game derived addresses.
var (
	authoritySeed = []byte("authority")
	escrowSeed    = []byte("escrow")
)

// Instruction discriminators.
var (
	joinGameDiscriminator   = discriminator("global:join_game")
	expireGameDiscriminator = discriminator("global:expire_game")
	settleGameDiscriminator = discriminator("global:settle_game")
	cleanGameDiscriminator  = discriminator("global:clean_game")
)

// Program is a deployment of the wager program.
type Program struct {
	ID ledger.Address
}

// ListFilter selects Game accounts in a getProgramAccounts listing.
func (p Program) ListFilter() ledger.MemcmpFilter {
	return ledger.MemcmpFilter{Offset: 0, Bytes: AccountDiscriminator[:]}
}

// Authority returns the game's authority address, which signs escrow
// transfers on the program's behalf.
func (p Program) Authority(game ledger.Address) ledger.Address {
	return p.mustFind(authoritySeed, game)
}

// Escrow returns the game's escrow token account address.
func (p Program) Escrow(game ledger.Address) ledger.Address {
	return p.mustFind(escrowSeed, game)
}

func (p Program) mustFind(seed []byte, game ledger.Address) ledger.Address {
	address, _, err := ledger.FindProgramAddress([][]byte{seed, game[:]}, p.ID)
	if err != nil {
		// Two fixed-size seeds never exceed the limits, and exhausting
		// all 256 bumps does not happen for a hash output.
		panic(fmt.Sprintf("game: deriving %s address for %s: %v", seed, game, err))
	}
	return address
}

// JoinGameAccounts are the accounts join_game reads and writes.
type JoinGameAccounts struct {
	Player ledger.Address
	Game   ledger.Address
	// PlayerFunding pays the wager: the player's wallet for native
	// games, otherwise the player's token account for the mint.
	PlayerFunding   ledger.Address
	Authority       ledger.Address
	Escrow          ledger.Address
	TransferProgram ledger.Address
}

// JoinGame accepts a challenge with choice. A nil entryProof encodes
// as None.
func (p Program) JoinGame(accounts JoinGameAccounts, choice Choice, entryProof *[32]byte) ledger.Instruction {
	data := append([]byte(nil), joinGameDiscriminator[:]...)
	data = append(data, byte(choice))
	if entryProof == nil {
		data = append(data, 0)
	} else {
		data = append(data, 1)
		data = append(data, entryProof[:]...)
	}
	return ledger.Instruction{
		Program: p.ID,
		Accounts: []ledger.AccountMeta{
			{Address: accounts.Player, Signer: true, Writable: true},
			{Address: accounts.Game, Writable: true},
			{Address: accounts.PlayerFunding, Writable: true},
			{Address: accounts.Authority},
			{Address: accounts.Escrow, Writable: true},
			{Address: accounts.TransferProgram},
		},
		Data: data,
	}
}

// ExpireGame forces a timed-out phase to forfeit against player, the
// side that failed to act.
func (p Program) ExpireGame(game, player ledger.Address) ledger.Instruction {
	return ledger.Instruction{
		Program: p.ID,
		Accounts: []ledger.AccountMeta{
			{Address: game, Writable: true},
			{Address: player},
		},
		Data: append([]byte(nil), expireGameDiscriminator[:]...),
	}
}

// SettleGameAccounts are the accounts settle_game reads and writes.
type SettleGameAccounts struct {
	Game ledger.Address
	// Player1Recipient and Player2Recipient receive payouts: wallets
	// for native games, token accounts otherwise.
	Player1Recipient ledger.Address
	Player2Recipient ledger.Address
	Authority        ledger.Address
	Escrow           ledger.Address
	TransferProgram  ledger.Address
}

// SettleGame pays out a finished game.
func (p Program) SettleGame(accounts SettleGameAccounts) ledger.Instruction {
	return ledger.Instruction{
		Program: p.ID,
		Accounts: []ledger.AccountMeta{
			{Address: accounts.Game, Writable: true},
			{Address: accounts.Player1Recipient, Writable: true},
			{Address: accounts.Player2Recipient, Writable: true},
			{Address: accounts.Authority},
			{Address: accounts.Escrow, Writable: true},
			{Address: accounts.TransferProgram},
		},
		Data: append([]byte(nil), settleGameDiscriminator[:]...),
	}
}

// CleanGameAccounts are the accounts clean_game closes or credits.
type CleanGameAccounts struct {
	Game            ledger.Address
	Authority       ledger.Address
	Escrow          ledger.Address
	Cleaner         ledger.Address
	TransferProgram ledger.Address
}

// CleanGame closes a settled game and its escrow, returning rent to
// the cleaner.
func (p Program) CleanGame(accounts CleanGameAccounts) ledger.Instruction {
	return ledger.Instruction{
		Program: p.ID,
		Accounts: []ledger.AccountMeta{
			{Address: accounts.Game, Writable: true},
			{Address: accounts.Authority},
			{Address: accounts.Escrow, Writable: true},
			{Address: accounts.Cleaner, Signer: true, Writable: true},
			{Address: accounts.TransferProgram},
		},
		Data: append([]byte(nil), cleanGameDiscriminator[:]...),
	}
}
