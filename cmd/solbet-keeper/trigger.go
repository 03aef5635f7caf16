// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/solbet-labs/keeper/ledger"
	"github.com/solbet-labs/keeper/lib/clock"
)

// trigger coalesces out-of-band pass requests: any number of requests
// made while one is pending collapse into it.
type trigger struct {
	pending chan struct{}
}

func newTrigger() *trigger {
	return &trigger{pending: make(chan struct{}, 1)}
}

// Request asks for a pass without blocking.
func (t *trigger) Request() {
	select {
	case t.pending <- struct{}{}:
	default:
	}
}

// C receives once per pending request.
func (t *trigger) C() <-chan struct{} { return t.pending }

const (
	subscribeInitialBackoff = time.Second
	subscribeMaxBackoff     = time.Minute
	// subscribeHealthyAfter is how long a subscription must stay up
	// before its failure resets the backoff.
	subscribeHealthyAfter = time.Minute
)

// subscribeFunc is ledger.Subscribe, replaced in tests.
var subscribeFunc = ledger.Subscribe

// runSubscription keeps a program subscription open until ctx is
// cancelled, requesting a pass for every account change and
// reconnecting with exponential backoff.
func runSubscription(ctx context.Context, config ledger.SubscriptionConfig, passes *trigger, clk clock.Clock, logger *slog.Logger) {
	backoff := subscribeInitialBackoff
	for {
		started := clk.Now()
		err := subscribeFunc(ctx, config, func(address ledger.Address) {
			logger.Debug("game account changed", "game", address.String())
			passes.Request()
		})
		if ctx.Err() != nil {
			return
		}
		if clk.Now().Sub(started) >= subscribeHealthyAfter {
			backoff = subscribeInitialBackoff
		}
		logger.Warn("program subscription lost, reconnecting",
			"error", err,
			"backoff", backoff,
		)
		select {
		case <-ctx.Done():
			return
		case <-clk.After(backoff):
		}
		backoff = min(backoff*2, subscribeMaxBackoff)
	}
}
