// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package game

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/solbet-labs/keeper/ledger"
)

var (
	alice = ledger.MustParseAddress("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	bob   = ledger.MustParseAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

func TestAccountDiscriminator(t *testing.T) {
	want := [8]byte{27, 90, 166, 125, 74, 100, 121, 18}
	if AccountDiscriminator != want {
		t.Errorf("AccountDiscriminator = %v, want %v", AccountDiscriminator, want)
	}
}

func TestDecodeAcceptingChallenge(t *testing.T) {
	// Built by hand so the layout is checked independently of Encode.
	data := append([]byte(nil), AccountDiscriminator[:]...)
	data = append(data, 0)
	data = binary.LittleEndian.AppendUint64(data, 500_000_000)
	data = append(data, ledger.WrappedSOLMint[:]...)
	data = append(data, 0)
	data = append(data, alice[:]...)
	data = append(data, make([]byte, 32)...)
	data = binary.LittleEndian.AppendUint64(data, 100)
	data = append(data, make([]byte, 40)...) // account padding

	phase, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := AcceptingChallenge{
		Config:     Config{WagerAmount: 500_000_000, Mint: ledger.WrappedSOLMint},
		Player1:    CommittedPlayer(alice, [32]byte{}),
		ExpirySlot: 100,
	}
	if diff := cmp.Diff(want, phase); diff != "" {
		t.Errorf("phase mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEachPhase(t *testing.T) {
	config := Config{WagerAmount: 7, Mint: ledger.SystemProgramID}
	phases := []Phase{
		AcceptingReveal{
			Config:     config,
			Player1:    CommittedPlayer(alice, [32]byte{1}),
			Player2:    RevealedPlayer(bob, Scissors),
			ExpirySlot: 9,
		},
		AcceptingSettle{
			Config:  config,
			Player1: RevealedPlayer(alice, Rock),
			Player2: CommittedPlayer(bob, [32]byte{2}),
		},
		Settled{Config: config, Result: Draw},
	}
	for _, want := range phases {
		t.Run(want.Name(), func(t *testing.T) {
			got, err := Decode(Encode(want))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("phase mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid := Encode(AcceptingChallenge{
		Config:  Config{WagerAmount: 1, Mint: ledger.SystemProgramID},
		Player1: CommittedPlayer(alice, [32]byte{}),
	})
	withByte := func(offset int, value byte) []byte {
		data := append([]byte(nil), valid...)
		data[offset] = value
		return data
	}

	tests := []struct {
		name       string
		data       []byte
		wantOffset int
	}{
		{"empty", nil, 0},
		{"short discriminator", valid[:5], 0},
		{"wrong discriminator", withByte(0, 0), 0},
		{"unknown state tag", withByte(8, 9), 8},
		{"unknown player tag", withByte(49, 4), 49},
		{"truncated expiry", valid[:len(valid)-3], len(valid) - 8},
		{"unknown result", settledWithResult(7), 49},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(test.data)
			if !errors.Is(err, ErrMalformedAccount) {
				t.Fatalf("err = %v, want ErrMalformedAccount", err)
			}
			var malformed *MalformedAccountError
			if !errors.As(err, &malformed) {
				t.Fatalf("err = %T, want *MalformedAccountError", err)
			}
			if malformed.Offset != test.wantOffset {
				t.Errorf("Offset = %d, want %d (%s)", malformed.Offset, test.wantOffset, malformed.Reason)
			}
		})
	}
}

func settledWithResult(result byte) []byte {
	data := Encode(Settled{})
	data[len(data)-1] = result
	return data
}

func TestDecodeGame(t *testing.T) {
	phase := Settled{Config: Config{WagerAmount: 3, Mint: ledger.SystemProgramID}, Result: Player2Won}
	game, err := DecodeGame(ledger.KeyedAccount{Address: bob, Data: Encode(phase)})
	if err != nil {
		t.Fatalf("DecodeGame: %v", err)
	}
	if game.Address != bob || game.Phase != Phase(phase) {
		t.Errorf("DecodeGame = %+v", game)
	}
}

func TestPlayerAddressPrefersReveal(t *testing.T) {
	tests := []struct {
		name   string
		player Player
		want   ledger.Address
	}{
		{"committed only", CommittedPlayer(bob, [32]byte{}), bob},
		{"revealed only", RevealedPlayer(alice, Paper), alice},
		{
			"both present",
			Player{
				Committed: &Commitment{Address: bob},
				Revealed:  &Reveal{Address: alice, Choice: Rock},
			},
			alice,
		},
		{"neither", Player{}, ledger.Address{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.player.Address(); got != test.want {
				t.Errorf("Address() = %s, want %s", got, test.want)
			}
		})
	}
}
