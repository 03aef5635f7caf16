// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Solbet-keeper reconciles rock-paper-scissors wager games on the
// ledger. On every tick of its schedule it lists the program's game
// accounts, decides what each game needs, and submits the
// transactions that move games forward: joining open challenges,
// expiring and settling stalled games, settling finished ones, and
// reclaiming rent from settled accounts.
//
// Passes also run on demand, from keeperctl over the control socket
// or, when ledger_ws_endpoint is configured, whenever the program's
// accounts change. Passes never overlap.
//
// Usage:
//
//	solbet-keeper --config /etc/solbet/keeper.yaml
//	solbet-keeper --config keeper.yaml --once --dry-run
package main
