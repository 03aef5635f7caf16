// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger is the keeper's client for a Solana-compatible ledger.
//
// It covers exactly what the reconciliation loop needs from the chain:
//
//   - [Client.GetProgramAccounts] lists a program's accounts as a
//     snapshot, requesting base64+zstd encoding and decompressing with
//     klauspost/compress.
//   - [Client.GetSlot] reads the current slot at the configured
//     commitment.
//   - [Client.SubmitAndConfirm] compiles instructions into a legacy
//     transaction, signs it, sends it, and polls signature status until
//     the commitment is reached, the blockhash expires, or the confirm
//     timeout elapses.
//   - [Subscribe] opens a programSubscribe websocket and reports each
//     account change, used to trigger out-of-band passes.
//
// [Address] is the 32-byte account key with base58 text form.
// [FindProgramAddress] and [FindAssociatedTokenAddress] derive
// program-owned addresses without network access.
//
// Errors are typed: [RPCError] for JSON-RPC error objects (simulation
// logs are folded into Error so diagnostics reach the failure
// classifier), [TransportError] for HTTP and network failures,
// [TransactionError] for a confirmed transaction that failed on chain,
// and the sentinels [ErrConfirmationTimeout] and [ErrBlockhashExpired].
package ledger
