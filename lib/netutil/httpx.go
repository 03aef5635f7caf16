// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small network I/O helpers shared by the ledger
// client and the daemon.
//
// ReadResponse bounds JSON-RPC response reads at MaxResponseSize. A
// getProgramAccounts listing for a busy program can be tens of
// megabytes, so the bound is generous; it exists only to stop a broken
// node from exhausting memory.
//
// IsExpectedCloseError classifies errors seen when a long-lived
// connection (the program subscription websocket, the control socket)
// is torn down normally.
package netutil

import (
	"io"
	"unicode/utf8"
)

// MaxResponseSize is the bound on JSON-RPC response body reads: 256 MB.
const MaxResponseSize int64 = 256 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// Truncate shortens text to at most limit bytes for error messages,
// cutting on a rune boundary and marking the cut with "...".
func Truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
