// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLength is the size of an account address in bytes.
const AddressLength = 32

// Address is an ed25519 public key or program-derived account key.
type Address [AddressLength]byte

// Well-known program and mint addresses.
var (
	SystemProgramID          = MustParseAddress("11111111111111111111111111111111")
	TokenProgramID           = MustParseAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustParseAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	WrappedSOLMint           = MustParseAddress("So11111111111111111111111111111111111111112")
)

// ParseAddress decodes a base58 address.
func ParseAddress(text string) (Address, error) {
	decoded, err := base58.Decode(text)
	if err != nil {
		return Address{}, fmt.Errorf("ledger: invalid address %q: %w", text, err)
	}
	if len(decoded) != AddressLength {
		return Address{}, fmt.Errorf("ledger: address %q decodes to %d bytes, want %d", text, len(decoded), AddressLength)
	}
	var address Address
	copy(address[:], decoded)
	return address, nil
}

// MustParseAddress is ParseAddress for compile-time constants. Panics on
// malformed input.
func MustParseAddress(text string) Address {
	address, err := ParseAddress(text)
	if err != nil {
		panic(err)
	}
	return address
}

// AddressFromBytes copies a 32-byte slice into an Address.
func AddressFromBytes(raw []byte) (Address, error) {
	if len(raw) != AddressLength {
		return Address{}, fmt.Errorf("ledger: address is %d bytes, want %d", len(raw), AddressLength)
	}
	var address Address
	copy(address[:], raw)
	return address, nil
}

// String returns the base58 form.
func (a Address) String() string { return base58.Encode(a[:]) }

// IsZero reports whether every byte is zero. The system program's
// address is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// MarshalText implements encoding.TextMarshaler so addresses appear as
// base58 in JSON, CBOR, and log output.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Signature is an ed25519 transaction signature. Its base58 form is the
// transaction id.
type Signature [64]byte

// String returns the base58 form.
func (s Signature) String() string { return base58.Encode(s[:]) }

// ParseSignature decodes a base58 transaction signature.
func ParseSignature(text string) (Signature, error) {
	decoded, err := base58.Decode(text)
	if err != nil {
		return Signature{}, fmt.Errorf("ledger: invalid signature %q: %w", text, err)
	}
	if len(decoded) != len(Signature{}) {
		return Signature{}, fmt.Errorf("ledger: signature %q decodes to %d bytes, want 64", text, len(decoded))
	}
	var signature Signature
	copy(signature[:], decoded)
	return signature, nil
}
