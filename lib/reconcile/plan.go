// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"
	"math/rand/v2"

	"github.com/solbet-labs/keeper/ledger"
	"github.com/solbet-labs/keeper/lib/game"
)

// Action is what the keeper does to one game in one pass.
type Action int

const (
	ActionNone Action = iota
	ActionJoin
	ActionExpireAndSettle
	ActionSettle
	ActionReclaimRent
)

// String returns the snake_case name used in logs and configuration.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionJoin:
		return "join"
	case ActionExpireAndSettle:
		return "expire_and_settle"
	case ActionSettle:
		return "settle"
	case ActionReclaimRent:
		return "reclaim_rent"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction is the inverse of Action.String for the four actions a
// keeper can perform.
func ParseAction(name string) (Action, error) {
	for _, action := range []Action{ActionJoin, ActionExpireAndSettle, ActionSettle, ActionReclaimRent} {
		if action.String() == name {
			return action, nil
		}
	}
	return ActionNone, fmt.Errorf("reconcile: unknown action %q", name)
}

// Plan is the decision for one game in one pass.
type Plan struct {
	Action Action
	Reason string
	// Choice is the move to play; meaningful only for ActionJoin.
	Choice game.Choice
}

// Plan reasons.
const (
	ReasonChallengeExpired = "challenge expired without an opponent"
	ReasonJoinable         = "open challenge within risk limit"
	ReasonWagerTooLarge    = "wager exceeds risk limit"
	ReasonAssetNotAccepted = "asset has no risk limit"
	ReasonRevealExpired    = "reveal window expired"
	ReasonAwaitingReveal   = "waiting for players to reveal"
	ReasonNotOwnGame       = "not a game this keeper joined"
	ReasonReadyToSettle    = "both sides final"
	ReasonSettled          = "settled game holds rent"
	ReasonActionDisabled   = "action disabled"
)

// Policy decides which games the keeper is willing to act on.
type Policy struct {
	// MaxWagerByAsset is the largest wager, inclusive, the keeper will
	// join per mint. A mint absent from the map is never joined.
	MaxWagerByAsset map[ledger.Address]uint64

	// AcceptOnlyOwnReveals limits reveal-phase finalization to games
	// whose second player is the keeper itself.
	AcceptOnlyOwnReveals bool

	// Enabled lists the actions this keeper performs. A nil map
	// enables all of them.
	Enabled map[Action]bool
}

func (p Policy) enabled(action Action) bool {
	return p.Enabled == nil || p.Enabled[action]
}

// Planner maps a phase to a Plan.
type Planner struct {
	policy Policy
	self   ledger.Address
	choose func() game.Choice
}

// NewPlanner returns a planner acting as self. A nil choose draws each
// join's move uniformly at random.
func NewPlanner(policy Policy, self ledger.Address, choose func() game.Choice) *Planner {
	if choose == nil {
		choose = randomChoice
	}
	return &Planner{policy: policy, self: self, choose: choose}
}

func randomChoice() game.Choice {
	return game.Choices[rand.IntN(len(game.Choices))]
}

// Plan decides the next action for phase at currentSlot. Expiry is
// strict: a game expires once currentSlot passes its expiry slot.
func (p *Planner) Plan(phase game.Phase, currentSlot uint64) Plan {
	plan := p.decide(phase, currentSlot)
	if plan.Action != ActionNone && !p.policy.enabled(plan.Action) {
		return Plan{Action: ActionNone, Reason: fmt.Sprintf("%s: %s", ReasonActionDisabled, plan.Action)}
	}
	return plan
}

func (p *Planner) decide(phase game.Phase, currentSlot uint64) Plan {
	switch state := phase.(type) {
	case game.AcceptingChallenge:
		if state.ExpirySlot < currentSlot {
			return Plan{Action: ActionExpireAndSettle, Reason: ReasonChallengeExpired}
		}
		limit, ok := p.policy.MaxWagerByAsset[state.Config.Mint]
		if !ok {
			return Plan{Action: ActionNone, Reason: ReasonAssetNotAccepted}
		}
		if state.Config.WagerAmount > limit {
			return Plan{Action: ActionNone, Reason: ReasonWagerTooLarge}
		}
		return Plan{Action: ActionJoin, Reason: ReasonJoinable, Choice: p.choose()}

	case game.AcceptingReveal:
		if p.policy.AcceptOnlyOwnReveals && state.Player2.Address() != p.self {
			return Plan{Action: ActionNone, Reason: ReasonNotOwnGame}
		}
		if state.ExpirySlot < currentSlot {
			return Plan{Action: ActionExpireAndSettle, Reason: ReasonRevealExpired}
		}
		return Plan{Action: ActionNone, Reason: ReasonAwaitingReveal}

	case game.AcceptingSettle:
		return Plan{Action: ActionSettle, Reason: ReasonReadyToSettle}

	case game.Settled:
		return Plan{Action: ActionReclaimRent, Reason: ReasonSettled}
	}
	return Plan{Action: ActionNone, Reason: fmt.Sprintf("unhandled phase %T", phase)}
}
