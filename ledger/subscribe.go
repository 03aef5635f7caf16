// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"

	"github.com/solbet-labs/keeper/lib/netutil"
)

const (
	subscribeHandshakeTimeout = 10 * time.Second
	subscribePingInterval     = 30 * time.Second
)

// SubscriptionConfig describes a programSubscribe stream.
type SubscriptionConfig struct {
	// Endpoint is the node's websocket URL (ws:// or wss://).
	Endpoint   string
	Program    Address
	Commitment Commitment
	Filters    []MemcmpFilter
	Logger     *slog.Logger
}

type programNotification struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Method string          `json:"method"`
	Params struct {
		Result struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Pubkey string `json:"pubkey"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Subscribe opens a programSubscribe stream and calls notify with the
// address of every changed account until ctx is cancelled or the
// connection fails. It returns nil on cancellation. Reconnecting is the
// caller's job.
func Subscribe(ctx context.Context, config SubscriptionConfig, notify func(Address)) error {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	commitment := config.Commitment
	if commitment == "" {
		commitment = CommitmentConfirmed
	}

	dialer := websocket.Dialer{HandshakeTimeout: subscribeHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, config.Endpoint, nil)
	if err != nil {
		return &TransportError{Method: "programSubscribe", Err: err}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(subscribePingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				conn.Close()
				return
			case <-done:
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	options := map[string]any{
		"encoding":   "base64",
		"commitment": commitment,
	}
	if len(config.Filters) > 0 {
		filters := make([]map[string]any, 0, len(config.Filters))
		for _, filter := range config.Filters {
			filters = append(filters, map[string]any{
				"memcmp": map[string]any{"offset": filter.Offset, "bytes": base58.Encode(filter.Bytes)},
			})
		}
		options["filters"] = filters
	}
	request := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "programSubscribe",
		Params:  []any{config.Program.String(), options},
	}
	if err := conn.WriteJSON(request); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return &TransportError{Method: "programSubscribe", Err: err}
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if netutil.IsExpectedCloseError(err) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = fmt.Errorf("connection closed by node: %w", err)
			}
			return &TransportError{Method: "programSubscribe", Err: err}
		}

		var message programNotification
		if err := json.Unmarshal(payload, &message); err != nil {
			logger.Warn("ignoring malformed subscription message", "error", err)
			continue
		}
		switch {
		case message.Error != nil:
			return message.Error
		case message.ID != nil:
			logger.Info("program subscription established",
				"program", config.Program.String(),
				"subscription", string(message.Result),
			)
		case message.Method == "programNotification":
			address, err := ParseAddress(message.Params.Result.Value.Pubkey)
			if err != nil {
				logger.Warn("ignoring notification with malformed address", "error", err)
				continue
			}
			notify(address)
		}
	}
}
