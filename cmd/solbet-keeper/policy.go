// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/solbet-labs/keeper/ledger"
	"github.com/solbet-labs/keeper/lib/config"
	"github.com/solbet-labs/keeper/lib/reconcile"
)

// buildPolicy converts the configured limits and action list into the
// planner's policy.
func buildPolicy(cfg *config.Config) (reconcile.Policy, error) {
	limits := make(map[ledger.Address]uint64, len(cfg.MaxWagerByAsset))
	for mint, limit := range cfg.MaxWagerByAsset {
		address, err := ledger.ParseAddress(mint)
		if err != nil {
			return reconcile.Policy{}, fmt.Errorf("max_wager_by_asset: %w", err)
		}
		limits[address] = limit
	}

	enabled := make(map[reconcile.Action]bool, len(config.AllActions))
	for _, name := range config.AllActions {
		if !cfg.ActionEnabled(name) {
			continue
		}
		action, err := reconcile.ParseAction(name)
		if err != nil {
			return reconcile.Policy{}, fmt.Errorf("enabled_actions: %w", err)
		}
		enabled[action] = true
	}
	if len(enabled) == 0 {
		return reconcile.Policy{}, errors.New("enabled_actions: no actions enabled")
	}

	return reconcile.Policy{
		MaxWagerByAsset:      limits,
		AcceptOnlyOwnReveals: cfg.AcceptOnlyOwnReveals,
		Enabled:              enabled,
	}, nil
}
