// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyfile loads the keeper's wallet keypair.
//
// The file holds a Solana keypair: a JSON array of 64 integers, the
// ed25519 seed followed by the public key. It may be age-encrypted
// (binary or ASCII-armored), in which case an age identity file is
// required to open it.
//
// Key material lives in a locked buffer: allocated with mmap outside
// the Go heap, mlocked against swap, excluded from core dumps, and
// zeroed on Close. Heap copies made while parsing are zeroed before
// Load returns.
//
//	keypair, err := keyfile.Load(config.WalletKeyFile, config.WalletIdentityFile)
//	if err != nil {
//		return err
//	}
//	defer keypair.Close()
//
// [Keypair] implements ledger.Signer.
package keyfile
