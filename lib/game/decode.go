// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package game

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/solbet-labs/keeper/ledger"
)

// AccountDiscriminator prefixes every Game account's data.
var AccountDiscriminator = discriminator("account:Game")

func discriminator(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

const (
	tagAcceptingChallenge = 0
	tagAcceptingReveal    = 1
	tagAcceptingSettle    = 2
	tagSettled            = 3

	tagCommitted = 0
	tagRevealed  = 1
)

// ErrMalformedAccount is wrapped by every MalformedAccountError.
var ErrMalformedAccount = errors.New("malformed game account")

// MalformedAccountError reports account data that is not a Game in any
// known phase.
type MalformedAccountError struct {
	Reason string
	Offset int
}

func (e *MalformedAccountError) Error() string {
	return fmt.Sprintf("game: %s at byte %d: %s", ErrMalformedAccount, e.Offset, e.Reason)
}

func (e *MalformedAccountError) Unwrap() error { return ErrMalformedAccount }

// Decode classifies raw Game account data into its phase. Bytes after
// the encoded state are ignored.
func Decode(data []byte) (Phase, error) {
	r := &reader{data: data}
	var prefix [8]byte
	r.read(prefix[:])
	if r.err == nil && prefix != AccountDiscriminator {
		return nil, &MalformedAccountError{Reason: "not a Game account", Offset: 0}
	}

	tag := r.u8()
	var phase Phase
	switch tag {
	case tagAcceptingChallenge:
		state := AcceptingChallenge{Config: r.config()}
		state.Player1 = r.player()
		state.ExpirySlot = r.u64()
		phase = state
	case tagAcceptingReveal:
		state := AcceptingReveal{Config: r.config()}
		state.Player1 = r.player()
		state.Player2 = r.player()
		state.ExpirySlot = r.u64()
		phase = state
	case tagAcceptingSettle:
		state := AcceptingSettle{Config: r.config()}
		state.Player1 = r.player()
		state.Player2 = r.player()
		phase = state
	case tagSettled:
		state := Settled{Config: r.config()}
		state.Result = Result(r.u8())
		if r.err == nil && state.Result > Draw {
			r.offset--
			r.fail(fmt.Sprintf("unknown result %d", state.Result))
		}
		phase = state
	default:
		if r.err == nil {
			r.offset--
			r.fail(fmt.Sprintf("unknown state tag %d", tag))
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return phase, nil
}

// DecodeGame decodes a listed account into a Game.
func DecodeGame(account ledger.KeyedAccount) (Game, error) {
	phase, err := Decode(account.Data)
	if err != nil {
		return Game{}, err
	}
	return Game{Address: account.Address, Phase: phase}, nil
}

// reader is a sticky-error Borsh decoder: after the first failure every
// read returns zero values and err keeps the first failure.
type reader struct {
	data   []byte
	offset int
	err    error
}

func (r *reader) fail(reason string) {
	if r.err == nil {
		r.err = &MalformedAccountError{Reason: reason, Offset: r.offset}
	}
}

func (r *reader) read(out []byte) {
	if r.err != nil {
		return
	}
	if len(r.data)-r.offset < len(out) {
		r.fail(fmt.Sprintf("truncated: need %d bytes, have %d", len(out), len(r.data)-r.offset))
		return
	}
	copy(out, r.data[r.offset:])
	r.offset += len(out)
}

func (r *reader) u8() uint8 {
	var b [1]byte
	r.read(b[:])
	return b[0]
}

func (r *reader) u64() uint64 {
	var b [8]byte
	r.read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func (r *reader) address() ledger.Address {
	var address ledger.Address
	r.read(address[:])
	return address
}

func (r *reader) config() Config {
	return Config{WagerAmount: r.u64(), Mint: r.address()}
}

func (r *reader) player() Player {
	tag := r.u8()
	switch tag {
	case tagCommitted:
		address := r.address()
		var hash [32]byte
		r.read(hash[:])
		return CommittedPlayer(address, hash)
	case tagRevealed:
		address := r.address()
		choice := Choice(r.u8())
		if r.err == nil && choice > Scissors {
			r.offset--
			r.fail(fmt.Sprintf("unknown choice %d", choice))
		}
		return RevealedPlayer(address, choice)
	default:
		if r.err == nil {
			r.offset--
			r.fail(fmt.Sprintf("unknown player tag %d", tag))
		}
		return Player{}
	}
}

// Encode produces account data for phase in the layout Decode reads.
// A player with both sub-states is encoded as revealed.
func Encode(phase Phase) []byte {
	out := append([]byte(nil), AccountDiscriminator[:]...)
	switch state := phase.(type) {
	case AcceptingChallenge:
		out = append(out, tagAcceptingChallenge)
		out = appendConfig(out, state.Config)
		out = appendPlayer(out, state.Player1)
		out = binary.LittleEndian.AppendUint64(out, state.ExpirySlot)
	case AcceptingReveal:
		out = append(out, tagAcceptingReveal)
		out = appendConfig(out, state.Config)
		out = appendPlayer(out, state.Player1)
		out = appendPlayer(out, state.Player2)
		out = binary.LittleEndian.AppendUint64(out, state.ExpirySlot)
	case AcceptingSettle:
		out = append(out, tagAcceptingSettle)
		out = appendConfig(out, state.Config)
		out = appendPlayer(out, state.Player1)
		out = appendPlayer(out, state.Player2)
	case Settled:
		out = append(out, tagSettled)
		out = appendConfig(out, state.Config)
		out = append(out, byte(state.Result))
	}
	return out
}

func appendConfig(out []byte, config Config) []byte {
	out = binary.LittleEndian.AppendUint64(out, config.WagerAmount)
	return append(out, config.Mint[:]...)
}

func appendPlayer(out []byte, player Player) []byte {
	switch {
	case player.Revealed != nil:
		out = append(out, tagRevealed)
		out = append(out, player.Revealed.Address[:]...)
		return append(out, byte(player.Revealed.Choice))
	case player.Committed != nil:
		out = append(out, tagCommitted)
		out = append(out, player.Committed.Address[:]...)
		return append(out, player.Committed.Hash[:]...)
	}
	var empty [65]byte
	return append(out, empty[:]...)
}
