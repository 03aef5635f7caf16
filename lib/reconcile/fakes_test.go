// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"sync"

	"github.com/solbet-labs/keeper/ledger"
	"github.com/solbet-labs/keeper/lib/game"
)

var (
	testProgram = game.Program{ID: ledger.MustParseAddress("rpsx2U29nY4LQmzw9kdvc7sgDBYK8N2UXpex3SJofuX")}

	keeperWallet = testAddress(0x10)
	alice        = testAddress(0x11)
	bob          = testAddress(0x12)

	nativeMint = ledger.SystemProgramID
	wsolMint   = ledger.WrappedSOLMint
)

func testAddress(b byte) ledger.Address {
	var address ledger.Address
	for i := range address {
		address[i] = b
	}
	return address
}

// fakeSigner signs with a fixed zero signature; the fake ledger never
// verifies it.
type fakeSigner struct {
	address ledger.Address
}

func (s fakeSigner) PublicKey() ledger.Address { return s.address }

func (s fakeSigner) Sign([]byte) (ledger.Signature, error) { return ledger.Signature{}, nil }

// fakeLedger serves a fixed listing and records submissions.
type fakeLedger struct {
	mu          sync.Mutex
	accounts    []ledger.KeyedAccount
	slot        uint64
	listErr     error
	slotErr     error
	submitErr   map[ledger.Address]error
	submissions [][]ledger.Instruction
	slotCalls   int

	// listEntered and listRelease, when set, block GetProgramAccounts
	// until the test releases it.
	listEntered chan struct{}
	listRelease chan struct{}
}

func newFakeLedger(slot uint64, games ...game.Game) *fakeLedger {
	fake := &fakeLedger{slot: slot, submitErr: make(map[ledger.Address]error)}
	for _, g := range games {
		fake.accounts = append(fake.accounts, ledger.KeyedAccount{
			Address: g.Address,
			Owner:   testProgram.ID,
			Data:    game.Encode(g.Phase),
		})
	}
	return fake
}

func (f *fakeLedger) GetProgramAccounts(ctx context.Context, program ledger.Address, filters ...ledger.MemcmpFilter) ([]ledger.KeyedAccount, error) {
	if f.listEntered != nil {
		close(f.listEntered)
		select {
		case <-f.listRelease:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]ledger.KeyedAccount(nil), f.accounts...), nil
}

func (f *fakeLedger) GetSlot(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slotCalls++
	return f.slot, f.slotErr
}

// SubmitAndConfirm fails with the submitErr entry of any account the
// transaction references.
func (f *fakeLedger) SubmitAndConfirm(_ context.Context, instructions []ledger.Instruction, _ ...ledger.Signer) (ledger.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, instructions)
	for _, instruction := range instructions {
		for _, meta := range instruction.Accounts {
			if err := f.submitErr[meta.Address]; err != nil {
				return ledger.Signature{}, err
			}
		}
	}
	var signature ledger.Signature
	signature[0] = byte(len(f.submissions))
	return signature, nil
}

func (f *fakeLedger) submissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions)
}
