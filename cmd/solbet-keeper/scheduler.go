// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/solbet-labs/keeper/lib/clock"
	"github.com/solbet-labs/keeper/lib/cron"
	"github.com/solbet-labs/keeper/lib/reconcile"
)

// passRunner is the part of *reconcile.Keeper the scheduler drives.
type passRunner interface {
	TryRunPass(ctx context.Context) (*reconcile.PassSummary, error)
}

// runScheduler starts a pass on every schedule tick and on every
// trigger until ctx is cancelled. A tick that finds a pass still
// running is dropped. Passes run on their own goroutine so the next
// tick is computed from the tick time, not from when the pass ends; on
// return, the in-flight pass has finished.
func runScheduler(ctx context.Context, keeper passRunner, schedule cron.Schedule, triggers <-chan struct{}, clk clock.Clock, logger *slog.Logger) error {
	var running sync.WaitGroup
	defer running.Wait()

	passes := make(chan struct{}, 1)
	start := func(reason string) {
		select {
		case passes <- struct{}{}:
		default:
			logger.Debug("pass already starting, dropping request", "reason", reason)
			return
		}
		running.Add(1)
		go func() {
			defer running.Done()
			defer func() { <-passes }()
			if _, err := keeper.TryRunPass(ctx); errors.Is(err, reconcile.ErrPassRunning) {
				logger.Info("previous pass still running, skipping", "reason", reason)
			}
		}()
	}

	for {
		now := clk.Now()
		next, err := schedule.Next(now)
		if err != nil {
			return fmt.Errorf("scheduling next pass: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(next.Sub(now)):
			start("schedule")
		case <-triggers:
			start("trigger")
		}
	}
}
