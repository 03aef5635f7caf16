// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
	pdaMarker     = "ProgramDerivedAddress"
)

// ErrNoViableBump is returned when every bump seed yields an on-curve
// point. With a uniform hash this happens with probability 2^-256.
var ErrNoViableBump = errors.New("ledger: no viable bump seed for program address")

// CreateProgramAddress hashes seeds under program into an address and
// rejects results that lie on the ed25519 curve (those could have a
// private key).
func CreateProgramAddress(seeds [][]byte, program Address) (Address, error) {
	if len(seeds) > maxSeeds {
		return Address{}, fmt.Errorf("ledger: %d seeds exceeds maximum of %d", len(seeds), maxSeeds)
	}
	hasher := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return Address{}, fmt.Errorf("ledger: seed of %d bytes exceeds maximum of %d", len(seed), maxSeedLength)
		}
		hasher.Write(seed)
	}
	hasher.Write(program[:])
	hasher.Write([]byte(pdaMarker))

	var address Address
	copy(address[:], hasher.Sum(nil))
	if isOnCurve(address) {
		return Address{}, errOnCurve
	}
	return address, nil
}

var errOnCurve = errors.New("ledger: derived address is on the ed25519 curve")

// FindProgramAddress searches bump seeds from 255 downward and returns
// the first off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		address, err := CreateProgramAddress(withBump, program)
		if errors.Is(err, errOnCurve) {
			continue
		}
		if err != nil {
			return Address{}, 0, err
		}
		return address, uint8(bump), nil
	}
	return Address{}, 0, ErrNoViableBump
}

// FindAssociatedTokenAddress returns the canonical token account that
// holds mint on behalf of wallet.
func FindAssociatedTokenAddress(wallet, mint Address) (Address, error) {
	address, _, err := FindProgramAddress(
		[][]byte{wallet[:], TokenProgramID[:], mint[:]},
		AssociatedTokenProgramID,
	)
	return address, err
}

func isOnCurve(address Address) bool {
	_, err := new(edwards25519.Point).SetBytes(address[:])
	return err == nil
}
