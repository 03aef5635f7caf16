// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RPCError is a JSON-RPC error object returned by the ledger node.
// Callers can use errors.As to extract it:
//
//	var rpcErr *RPCError
//	if errors.As(err, &rpcErr) && rpcErr.Code == CodeNodeUnhealthy { ... }
//
// Preflight simulation failures put program logs in Data; Error includes
// them so that anything matching on the error text sees the program's
// own diagnostics.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// JSON-RPC error codes the keeper inspects.
const (
	CodeInvalidParams                   = -32602
	CodeSendTransactionPreflightFailure = -32002
	CodeNodeUnhealthy                   = -32005
)

func (e *RPCError) Error() string {
	text := fmt.Sprintf("ledger: rpc error %d: %s", e.Code, e.Message)
	if logs := e.Logs(); len(logs) > 0 {
		text += "\n" + strings.Join(logs, "\n")
	}
	return text
}

// Logs returns the program log lines attached to a simulation failure,
// or nil.
func (e *RPCError) Logs() []string {
	if len(e.Data) == 0 {
		return nil
	}
	var data struct {
		Logs []string `json:"logs"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil
	}
	return data.Logs
}

// TransportError is a failure to get a JSON-RPC response at all: the
// connection failed, or the node answered with a non-2xx HTTP status.
type TransportError struct {
	Method string
	// StatusCode is zero when no HTTP response was received.
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return fmt.Sprintf("ledger: %s: Too many requests (429)", e.Method)
	case e.StatusCode != 0:
		return fmt.Sprintf("ledger: %s: unexpected HTTP %d: %s", e.Method, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("ledger: %s: %v", e.Method, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// TransactionError reports a transaction that landed but failed during
// execution. Err is the node's JSON encoding of the failure.
type TransactionError struct {
	Signature Signature
	Err       json.RawMessage
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("ledger: transaction %s failed: %s", e.Signature, describeTransactionError(e.Err))
}

// describeTransactionError renders the node's structured error in the
// same text form its logs use, so custom program errors read as
// "custom program error: 0x...".
func describeTransactionError(raw json.RawMessage) string {
	var instructionFailure struct {
		InstructionError []json.RawMessage `json:"InstructionError"`
	}
	if err := json.Unmarshal(raw, &instructionFailure); err == nil && len(instructionFailure.InstructionError) == 2 {
		var index int
		_ = json.Unmarshal(instructionFailure.InstructionError[0], &index)
		var custom struct {
			Custom *uint32 `json:"Custom"`
		}
		if err := json.Unmarshal(instructionFailure.InstructionError[1], &custom); err == nil && custom.Custom != nil {
			return fmt.Sprintf("Error processing Instruction %d: custom program error: 0x%x", index, *custom.Custom)
		}
		return fmt.Sprintf("Error processing Instruction %d: %s", index, string(instructionFailure.InstructionError[1]))
	}
	return string(raw)
}

var (
	// ErrConfirmationTimeout means the transaction was sent but did not
	// reach the target commitment within the confirm timeout. It may
	// still land.
	ErrConfirmationTimeout = errors.New("ledger: confirmation timed out")

	// ErrBlockhashExpired means the block height passed the blockhash's
	// last valid height without the transaction landing. It will never
	// land.
	ErrBlockhashExpired = errors.New("ledger: blockhash expired before confirmation")
)
