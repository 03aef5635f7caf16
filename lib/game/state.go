// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package game

import (
	"fmt"

	"github.com/solbet-labs/keeper/ledger"
)

// Choice is a rock/paper/scissors move.
type Choice uint8

const (
	Rock Choice = iota
	Paper
	Scissors
)

// Choices lists every valid move.
var Choices = [...]Choice{Rock, Paper, Scissors}

func (c Choice) String() string {
	switch c {
	case Rock:
		return "rock"
	case Paper:
		return "paper"
	case Scissors:
		return "scissors"
	}
	return fmt.Sprintf("choice(%d)", uint8(c))
}

// Config is fixed when the challenger opens the game.
type Config struct {
	WagerAmount uint64
	// Mint is the asset the wager is denominated in. The system program
	// id means native lamports.
	Mint ledger.Address
}

// Commitment is a player's hidden move.
type Commitment struct {
	Address ledger.Address
	Hash    [32]byte
}

// Reveal is a player's disclosed move.
type Reveal struct {
	Address ledger.Address
	Choice  Choice
}

// Player is one side of a game. The account holds exactly one of the
// two sub-states, but a player is modeled with both so that a reveal
// always takes precedence when both are known.
type Player struct {
	Committed *Commitment
	Revealed  *Reveal
}

// CommittedPlayer returns a player that has committed but not revealed.
func CommittedPlayer(address ledger.Address, hash [32]byte) Player {
	return Player{Committed: &Commitment{Address: address, Hash: hash}}
}

// RevealedPlayer returns a player that has revealed choice.
func RevealedPlayer(address ledger.Address, choice Choice) Player {
	return Player{Revealed: &Reveal{Address: address, Choice: choice}}
}

// Address returns the wallet that receives this player's payout: the
// revealed address when present, otherwise the committed one.
func (p Player) Address() ledger.Address {
	if p.Revealed != nil {
		return p.Revealed.Address
	}
	if p.Committed != nil {
		return p.Committed.Address
	}
	return ledger.Address{}
}

// HasRevealed reports whether the player disclosed a move.
func (p Player) HasRevealed() bool { return p.Revealed != nil }

// Result is the outcome recorded in a settled game.
type Result uint8

const (
	Player1Won Result = iota
	Player2Won
	Draw
)

func (r Result) String() string {
	switch r {
	case Player1Won:
		return "player1_won"
	case Player2Won:
		return "player2_won"
	case Draw:
		return "draw"
	}
	return fmt.Sprintf("result(%d)", uint8(r))
}

// Phase is one lifecycle state of a game. The set of implementations
// is closed.
type Phase interface {
	// Name is the snake_case phase name used in logs.
	Name() string
	// GameConfig returns the wager terms.
	GameConfig() Config
	phase()
}

// AcceptingChallenge waits for a second player until ExpirySlot.
type AcceptingChallenge struct {
	Config     Config
	Player1    Player
	ExpirySlot uint64
}

// AcceptingReveal waits for both players to reveal until ExpirySlot.
type AcceptingReveal struct {
	Config     Config
	Player1    Player
	Player2    Player
	ExpirySlot uint64
}

// AcceptingSettle has no further player action; anyone may settle it.
type AcceptingSettle struct {
	Config  Config
	Player1 Player
	Player2 Player
}

// Settled has paid out and only awaits rent reclamation.
type Settled struct {
	Config Config
	Result Result
}

func (AcceptingChallenge) Name() string { return "accepting_challenge" }
func (AcceptingReveal) Name() string    { return "accepting_reveal" }
func (AcceptingSettle) Name() string    { return "accepting_settle" }
func (Settled) Name() string            { return "settled" }

func (p AcceptingChallenge) GameConfig() Config { return p.Config }
func (p AcceptingReveal) GameConfig() Config    { return p.Config }
func (p AcceptingSettle) GameConfig() Config    { return p.Config }
func (p Settled) GameConfig() Config            { return p.Config }

func (AcceptingChallenge) phase() {}
func (AcceptingReveal) phase()    {}
func (AcceptingSettle) phase()    {}
func (Settled) phase()            {}

// Game is a decoded Game account.
type Game struct {
	Address ledger.Address
	Phase   Phase
}
