// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the keeper's control socket: a CBOR
// request-response protocol on a Unix socket.
//
// Each connection carries exactly one request and one response. A
// request is a CBOR map with an "action" field plus action-specific
// fields; the response is a [Response] envelope. The daemon registers
// actions on a [SocketServer] and keeperctl calls them through a
// [Client].
//
// Access control is the socket file's mode: the server creates it
// 0600, so only the keeper's own user can connect.
package service
