// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the keeper's
// scheduler and by transaction confirmation polling.
//
// Production code holds a [Clock] obtained from [Real]. Tests use [Fake],
// which only moves when [FakeClock.Advance] is called. Call
// [FakeClock.WaitForTimers] before advancing so the goroutine under test
// has registered its wait; otherwise the advance can race past it.
package clock
