// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the keeper's standard CBOR encoding
// configuration.
//
// The keeper speaks JSON to the outside world (the ledger node's
// JSON-RPC API, keeperctl --json output) and CBOR on its control
// socket. This package holds the shared CBOR modes so the daemon and
// keeperctl encode identically. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2).
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the control socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
// A `cbor` tag marks a type that is only ever CBOR: the socket
// envelope and request headers. A `json` tag marks a type that is
// also printed as JSON, such as pass summaries and skip-set entries;
// fxamacker/cbor reads `json` tags when `cbor` tags are absent. Never
// put both on one field.
package codec
