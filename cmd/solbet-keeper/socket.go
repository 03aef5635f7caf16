// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/solbet-labs/keeper/lib/codec"
	"github.com/solbet-labs/keeper/lib/reconcile"
	"github.com/solbet-labs/keeper/lib/service"
	"github.com/solbet-labs/keeper/lib/version"
)

// controlledKeeper is the part of *reconcile.Keeper the control socket
// exposes.
type controlledKeeper interface {
	RunPass(ctx context.Context) (*reconcile.PassSummary, error)
	LastPass() *reconcile.PassSummary
	Cache() *reconcile.SkipCache
}

// statusResponse is the "status" action result.
type statusResponse struct {
	Version   string                 `json:"version"`
	StartedAt time.Time              `json:"started_at"`
	LastPass  *reconcile.PassSummary `json:"last_pass,omitempty"`
	SkipCache int                    `json:"skip_cache_entries"`
}

type skipListRequest struct {
	Limit int `cbor:"limit"`
}

type skipListResponse struct {
	Entries []reconcile.SkipEntry `json:"entries"`
	Total   int                   `json:"total"`
}

type skipClearResponse struct {
	Cleared int `json:"cleared"`
}

// registerActions wires the control actions to keeper.
func registerActions(server *service.SocketServer, keeper controlledKeeper, startedAt time.Time) {
	server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
		return statusResponse{
			Version:   version.Info(),
			StartedAt: startedAt,
			LastPass:  keeper.LastPass(),
			SkipCache: keeper.Cache().Len(),
		}, nil
	})

	// run-pass waits for any pass in progress, then runs a fresh one.
	server.Handle("run-pass", func(ctx context.Context, raw []byte) (any, error) {
		summary, err := keeper.RunPass(ctx)
		if err != nil {
			return nil, fmt.Errorf("pass failed: %w", err)
		}
		return summary, nil
	})

	server.Handle("skip-list", func(ctx context.Context, raw []byte) (any, error) {
		var request skipListRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid skip-list request: %w", err)
		}
		if request.Limit < 0 {
			return nil, fmt.Errorf("limit must not be negative, got %d", request.Limit)
		}
		entries := keeper.Cache().Entries()
		response := skipListResponse{Entries: entries, Total: len(entries)}
		if request.Limit > 0 && len(entries) > request.Limit {
			response.Entries = entries[:request.Limit]
		}
		return response, nil
	})

	server.Handle("skip-clear", func(ctx context.Context, raw []byte) (any, error) {
		return skipClearResponse{Cleared: keeper.Cache().Clear()}, nil
	})
}
