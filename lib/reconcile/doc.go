// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile drives wager games toward settlement.
//
// A [Keeper] runs passes. Each pass lists every Game account once,
// reads the current slot, and then handles accounts one at a time:
//
//  1. Accounts in the [SkipCache] skip set are passed over before
//     decoding.
//  2. The account is decoded into a phase. Malformed accounts are
//     reported and left out of the skip set.
//  3. The [Planner] picks one [Action] for the phase, slot, and
//     [Policy].
//  4. The [Executor] builds the instructions for that action, using a
//     native or escrow-token transfer strategy picked from the game's
//     mint, and submits them.
//  5. Failures go through [ClassifyError]. Only
//     [UnrecoverableAccountState] adds the game to the skip set.
//
// A failure on one account never ends the pass. A failure listing
// accounts or reading the slot ends the pass with an error; the next
// pass starts fresh.
//
// Passes are serialized. [Keeper.TryRunPass] returns immediately when
// a pass is already running, which is how the scheduler avoids
// overlapping ticks.
package reconcile
