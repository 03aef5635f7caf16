// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/solbet-labs/keeper/ledger"
	"github.com/solbet-labs/keeper/lib/game"
	"github.com/solbet-labs/keeper/lib/keyfile"
)

func ata(t *testing.T, owner, mint ledger.Address) ledger.Address {
	t.Helper()
	address, err := ledger.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		t.Fatalf("FindAssociatedTokenAddress: %v", err)
	}
	return address
}

func newTestExecutor(fake *fakeLedger, dryRun bool) *Executor {
	return NewExecutor(fake, testProgram, fakeSigner{address: keeperWallet}, dryRun, nil)
}

// Scenario A: an expired challenge is expired and settled atomically.
func TestExecuteExpiredChallenge(t *testing.T) {
	g1 := testAddress(0x01)
	phase := challenge(oneSOL/2, wsolMint, 100)

	plan := NewPlanner(Policy{MaxWagerByAsset: map[ledger.Address]uint64{wsolMint: oneSOL}}, keeperWallet, nil).Plan(phase, 101)
	if plan.Action != ActionExpireAndSettle {
		t.Fatalf("Action = %s, want expire_and_settle", plan.Action)
	}

	fake := newFakeLedger(101)
	outcome, err := newTestExecutor(fake, false).Execute(context.Background(), plan, game.Game{Address: g1, Phase: phase})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Signature == (ledger.Signature{}) || outcome.Strategy != "escrow_token" {
		t.Errorf("outcome = %+v", outcome)
	}

	if fake.submissionCount() != 1 {
		t.Fatalf("submitted %d transactions, want 1", fake.submissionCount())
	}
	aliceTokens := ata(t, alice, wsolMint)
	want := []ledger.Instruction{
		testProgram.ExpireGame(g1, alice),
		testProgram.SettleGame(game.SettleGameAccounts{
			Game:             g1,
			Player1Recipient: aliceTokens,
			Player2Recipient: aliceTokens,
			Authority:        testProgram.Authority(g1),
			Escrow:           testProgram.Escrow(g1),
			TransferProgram:  ledger.TokenProgramID,
		}),
	}
	if diff := cmp.Diff(want, fake.submissions[0]); diff != "" {
		t.Errorf("transaction mismatch (-want +got):\n%s", diff)
	}
}

// Scenario B: settlement pays the revealed player1 and the committed
// player2.
func TestExecuteSettleResolvesRecipients(t *testing.T) {
	g2 := testAddress(0x02)
	phase := game.AcceptingSettle{
		Config:  game.Config{WagerAmount: oneSOL, Mint: nativeMint},
		Player1: game.RevealedPlayer(alice, game.Rock),
		Player2: game.CommittedPlayer(bob, [32]byte{9}),
	}

	fake := newFakeLedger(10)
	plan := Plan{Action: ActionSettle}
	if _, err := newTestExecutor(fake, false).Execute(context.Background(), plan, game.Game{Address: g2, Phase: phase}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []ledger.Instruction{
		testProgram.SettleGame(game.SettleGameAccounts{
			Game:             g2,
			Player1Recipient: alice,
			Player2Recipient: bob,
			Authority:        testProgram.Authority(g2),
			Escrow:           testProgram.Authority(g2),
			TransferProgram:  ledger.SystemProgramID,
		}),
	}
	if diff := cmp.Diff(want, fake.submissions[0]); diff != "" {
		t.Errorf("transaction mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteSettlePrefersRevealedAddress(t *testing.T) {
	stale := testAddress(0x33)
	phase := game.AcceptingSettle{
		Config: game.Config{Mint: nativeMint},
		Player1: game.Player{
			Committed: &game.Commitment{Address: stale},
			Revealed:  &game.Reveal{Address: alice, Choice: game.Paper},
		},
		Player2: game.CommittedPlayer(bob, [32]byte{}),
	}
	instructions, _, err := newTestExecutor(newFakeLedger(0), false).Instructions(Plan{Action: ActionSettle}, game.Game{Address: testAddress(3), Phase: phase})
	if err != nil {
		t.Fatalf("Instructions: %v", err)
	}
	if got := instructions[0].Accounts[1].Address; got != alice {
		t.Errorf("player1 recipient = %s, want revealed address %s", got, alice)
	}
}

func TestExecuteExpiredRevealNamesCommittedSide(t *testing.T) {
	gameAddress := testAddress(0x04)
	tests := []struct {
		name        string
		player1     game.Player
		player2     game.Player
		wantExpired ledger.Address
	}{
		{"player2 never revealed", game.RevealedPlayer(alice, game.Rock), game.CommittedPlayer(bob, [32]byte{}), bob},
		{"player1 never revealed", game.CommittedPlayer(alice, [32]byte{}), game.RevealedPlayer(bob, game.Paper), alice},
		{"neither revealed", game.CommittedPlayer(alice, [32]byte{}), game.CommittedPlayer(bob, [32]byte{}), alice},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			phase := game.AcceptingReveal{
				Config:     game.Config{Mint: nativeMint},
				Player1:    test.player1,
				Player2:    test.player2,
				ExpirySlot: 5,
			}
			instructions, _, err := newTestExecutor(newFakeLedger(0), false).Instructions(
				Plan{Action: ActionExpireAndSettle}, game.Game{Address: gameAddress, Phase: phase})
			if err != nil {
				t.Fatalf("Instructions: %v", err)
			}
			if len(instructions) != 2 {
				t.Fatalf("got %d instructions, want expire then settle", len(instructions))
			}
			if diff := cmp.Diff(testProgram.ExpireGame(gameAddress, test.wantExpired), instructions[0]); diff != "" {
				t.Errorf("expire mismatch (-want +got):\n%s", diff)
			}
			if instructions[1].Accounts[1].Address != alice || instructions[1].Accounts[2].Address != bob {
				t.Errorf("settle recipients = %s, %s", instructions[1].Accounts[1].Address, instructions[1].Accounts[2].Address)
			}
		})
	}
}

func TestExecuteJoin(t *testing.T) {
	gameAddress := testAddress(0x05)

	t.Run("native", func(t *testing.T) {
		phase := challenge(100, nativeMint, 50)
		instructions, strategy, err := newTestExecutor(newFakeLedger(0), false).Instructions(
			Plan{Action: ActionJoin, Choice: game.Paper}, game.Game{Address: gameAddress, Phase: phase})
		if err != nil {
			t.Fatalf("Instructions: %v", err)
		}
		want := testProgram.JoinGame(game.JoinGameAccounts{
			Player:          keeperWallet,
			Game:            gameAddress,
			PlayerFunding:   keeperWallet,
			Authority:       testProgram.Authority(gameAddress),
			Escrow:          testProgram.Authority(gameAddress),
			TransferProgram: ledger.SystemProgramID,
		}, game.Paper, nil)
		if diff := cmp.Diff([]ledger.Instruction{want}, instructions); diff != "" {
			t.Errorf("join mismatch (-want +got):\n%s", diff)
		}
		if strategy != "native" {
			t.Errorf("strategy = %q, want native", strategy)
		}
	})

	t.Run("escrow token", func(t *testing.T) {
		phase := challenge(100, wsolMint, 50)
		instructions, strategy, err := newTestExecutor(newFakeLedger(0), false).Instructions(
			Plan{Action: ActionJoin, Choice: game.Rock}, game.Game{Address: gameAddress, Phase: phase})
		if err != nil {
			t.Fatalf("Instructions: %v", err)
		}
		want := testProgram.JoinGame(game.JoinGameAccounts{
			Player:          keeperWallet,
			Game:            gameAddress,
			PlayerFunding:   ata(t, keeperWallet, wsolMint),
			Authority:       testProgram.Authority(gameAddress),
			Escrow:          testProgram.Escrow(gameAddress),
			TransferProgram: ledger.TokenProgramID,
		}, game.Rock, nil)
		if diff := cmp.Diff([]ledger.Instruction{want}, instructions); diff != "" {
			t.Errorf("join mismatch (-want +got):\n%s", diff)
		}
		if strategy != "escrow_token" {
			t.Errorf("strategy = %q, want escrow_token", strategy)
		}
	})
}

func TestExecuteReclaimRent(t *testing.T) {
	gameAddress := testAddress(0x06)
	phase := game.Settled{Config: game.Config{Mint: wsolMint}, Result: game.Player1Won}
	instructions, _, err := newTestExecutor(newFakeLedger(0), false).Instructions(
		Plan{Action: ActionReclaimRent}, game.Game{Address: gameAddress, Phase: phase})
	if err != nil {
		t.Fatalf("Instructions: %v", err)
	}
	want := testProgram.CleanGame(game.CleanGameAccounts{
		Game:            gameAddress,
		Authority:       testProgram.Authority(gameAddress),
		Escrow:          testProgram.Escrow(gameAddress),
		Cleaner:         keeperWallet,
		TransferProgram: ledger.TokenProgramID,
	})
	if diff := cmp.Diff([]ledger.Instruction{want}, instructions); diff != "" {
		t.Errorf("clean mismatch (-want +got):\n%s", diff)
	}
}

func TestExecutePhaseMismatch(t *testing.T) {
	fake := newFakeLedger(0)
	_, err := newTestExecutor(fake, false).Execute(context.Background(),
		Plan{Action: ActionReclaimRent}, game.Game{Address: alice, Phase: challenge(1, nativeMint, 1)})
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v, want *Failure", err)
	}
	if fake.submissionCount() != 0 {
		t.Error("mismatched plan was submitted")
	}
}

func TestExecuteDryRun(t *testing.T) {
	fake := newFakeLedger(0)
	outcome, err := newTestExecutor(fake, true).Execute(context.Background(),
		Plan{Action: ActionReclaimRent}, game.Game{Address: alice, Phase: game.Settled{}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !outcome.DryRun || outcome.Instructions != 1 {
		t.Errorf("outcome = %+v, want dry run with one instruction", outcome)
	}
	if fake.submissionCount() != 0 {
		t.Error("dry run submitted a transaction")
	}
}

// signingSubmitter signs every submission the way the ledger client
// does and keeps the resulting transactions.
type signingSubmitter struct {
	transactions []*ledger.Transaction
}

func (s *signingSubmitter) SubmitAndConfirm(_ context.Context, instructions []ledger.Instruction, signers ...ledger.Signer) (ledger.Signature, error) {
	transaction, err := ledger.SignTransaction([32]byte{7}, instructions, signers...)
	if err != nil {
		return ledger.Signature{}, err
	}
	s.transactions = append(s.transactions, transaction)
	return transaction.ID(), nil
}

func TestExecuteSignsWithKeyfileKeypair(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for index := range seed {
		seed[index] = byte(0x40 + index)
	}
	privateKey := ed25519.NewKeyFromSeed(seed)
	keypair, err := keyfile.Parse(keyfile.Encode(privateKey))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer keypair.Close()

	submitter := &signingSubmitter{}
	executor := NewExecutor(submitter, testProgram, keypair, false, nil)
	outcome, err := executor.Execute(context.Background(),
		Plan{Action: ActionJoin, Choice: game.Rock},
		game.Game{Address: testAddress(0x07), Phase: challenge(100, nativeMint, 50)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(submitter.transactions) != 1 {
		t.Fatalf("signed %d transactions, want 1", len(submitter.transactions))
	}
	transaction := submitter.transactions[0]
	if outcome.Signature != transaction.ID() {
		t.Errorf("outcome signature = %s, want %s", outcome.Signature, transaction.ID())
	}
	public := privateKey.Public().(ed25519.PublicKey)
	if !ed25519.Verify(public, transaction.Message.Serialize(), transaction.Signatures[0][:]) {
		t.Error("transaction signature does not verify against the wallet key")
	}

	// The keypair keeps signing after the first use.
	if _, err := executor.Execute(context.Background(),
		Plan{Action: ActionJoin, Choice: game.Paper},
		game.Game{Address: testAddress(0x08), Phase: challenge(100, nativeMint, 50)}); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
}
