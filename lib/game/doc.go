// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package game models the rock/paper/scissors wager program's Game
// account and the instructions the keeper sends to it.
//
// [Decode] turns raw account data into exactly one [Phase]:
// [AcceptingChallenge], [AcceptingReveal], [AcceptingSettle], or
// [Settled]. Anything else is a [MalformedAccountError]; callers
// report it and move on, since it means the deployed program and this
// package disagree about the layout.
//
// [Program] derives each game's authority and escrow addresses and
// builds join_game, expire_game, settle_game, and clean_game
// instructions. Which accounts carry the funds depends on the game's
// asset, so the builders take the funding accounts from the caller.
package game
