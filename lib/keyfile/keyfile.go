// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package keyfile

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/solbet-labs/keeper/ledger"
)

// Keypair is an ed25519 signing key held in locked memory.
type Keypair struct {
	key    *lockedBuffer
	public ledger.Address
}

// Load reads the keypair at path, decrypting it with the age
// identities in identityPath when the file is sealed. identityPath is
// ignored for plaintext files.
func Load(path, identityPath string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyfile: reading %s: %w", path, err)
	}

	var contents *lockedBuffer
	if IsSealed(data) {
		contents, err = open(data, identityPath)
		zero(data)
	} else {
		contents, err = lockBytes(data)
	}
	if err != nil {
		return nil, err
	}
	defer contents.Close()

	var keypair *Keypair
	contents.use(func(text []byte) {
		keypair, err = Parse(text)
	})
	if err != nil {
		return nil, fmt.Errorf("keyfile: %s: %w", path, err)
	}
	return keypair, nil
}

// Parse decodes a JSON keypair: an array of 64 byte values, seed then
// public key. The public key must match the seed. text is not retained.
func Parse(text []byte) (*Keypair, error) {
	var values []int
	if err := json.Unmarshal(bytes.TrimSpace(text), &values); err != nil {
		return nil, fmt.Errorf("keypair is not a JSON byte array: %w", err)
	}
	defer func() {
		for index := range values {
			values[index] = 0
		}
	}()
	if len(values) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair has %d bytes, want %d", len(values), ed25519.PrivateKeySize)
	}

	raw := make([]byte, ed25519.PrivateKeySize)
	for index, value := range values {
		if value < 0 || value > 255 {
			zero(raw)
			return nil, fmt.Errorf("keypair byte %d is out of range: %d", index, value)
		}
		raw[index] = byte(value)
	}

	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	matches := bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:])
	zero(derived)
	if !matches {
		zero(raw)
		return nil, fmt.Errorf("keypair public key does not match its seed")
	}

	var public ledger.Address
	copy(public[:], raw[ed25519.SeedSize:])
	key, err := lockBytes(raw)
	if err != nil {
		return nil, err
	}
	return &Keypair{key: key, public: public}, nil
}

// Encode renders a private key in the JSON keypair format.
func Encode(privateKey ed25519.PrivateKey) []byte {
	values := make([]int, len(privateKey))
	for index, value := range privateKey {
		values[index] = int(value)
	}
	text, _ := json.Marshal(values)
	return text
}

// PublicKey returns the wallet address.
func (k *Keypair) PublicKey() ledger.Address { return k.public }

// Sign signs message with the wallet key.
//
// crypto/ed25519 caches derived state keyed by the private key's
// address, which must point into the Go heap. The locked mapping is
// copied into a heap buffer for the duration of one signature and the
// copy is zeroed afterwards.
func (k *Keypair) Sign(message []byte) (ledger.Signature, error) {
	var signature ledger.Signature
	k.key.use(func(key []byte) {
		private := make(ed25519.PrivateKey, len(key))
		defer zero(private)
		copy(private, key)
		copy(signature[:], ed25519.Sign(private, message))
	})
	return signature, nil
}

// Close zeroes and releases the key material. The keypair must not be
// used afterwards.
func (k *Keypair) Close() error {
	return k.key.Close()
}
