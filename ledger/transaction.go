// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"errors"
	"fmt"
)

// AccountMeta names one account an instruction touches.
type AccountMeta struct {
	Address  Address
	Signer   bool
	Writable bool
}

// Instruction is a single program invocation inside a transaction.
type Instruction struct {
	Program  Address
	Accounts []AccountMeta
	Data     []byte
}

// Signer produces ed25519 signatures for a public key. The keeper's
// wallet is the only signer it ever uses.
type Signer interface {
	PublicKey() Address
	Sign(message []byte) (Signature, error)
}

// Message is a compiled legacy transaction message.
type Message struct {
	RequiredSignatures   uint8
	ReadonlySigned       uint8
	ReadonlyUnsigned     uint8
	AccountKeys          []Address
	RecentBlockhash      [32]byte
	CompiledInstructions []CompiledInstruction
}

// CompiledInstruction references accounts by index into
// Message.AccountKeys.
type CompiledInstruction struct {
	ProgramIndex   uint8
	AccountIndexes []uint8
	Data           []byte
}

// maxAccountKeys is the legacy format's limit: indexes are single bytes.
const maxAccountKeys = 256

// CompileMessage orders every account referenced by instructions into
// the legacy layout: the fee payer first, then the remaining writable
// signers, readonly signers, writable non-signers, and readonly
// non-signers, each group in first-reference order. Flags for an
// account referenced more than once are merged.
func CompileMessage(payer Address, blockhash [32]byte, instructions []Instruction) (*Message, error) {
	if len(instructions) == 0 {
		return nil, errors.New("ledger: transaction has no instructions")
	}

	type entry struct {
		address  Address
		signer   bool
		writable bool
	}
	var order []*entry
	byAddress := make(map[Address]*entry)
	add := func(address Address, signer, writable bool) {
		if existing, ok := byAddress[address]; ok {
			existing.signer = existing.signer || signer
			existing.writable = existing.writable || writable
			return
		}
		created := &entry{address: address, signer: signer, writable: writable}
		byAddress[address] = created
		order = append(order, created)
	}

	add(payer, true, true)
	for _, instruction := range instructions {
		for _, meta := range instruction.Accounts {
			add(meta.Address, meta.Signer, meta.Writable)
		}
		add(instruction.Program, false, false)
	}
	if len(order) > maxAccountKeys {
		return nil, fmt.Errorf("ledger: transaction references %d accounts, limit is %d", len(order), maxAccountKeys)
	}

	message := &Message{RecentBlockhash: blockhash}
	groups := []struct{ signer, writable bool }{
		{true, true}, {true, false}, {false, true}, {false, false},
	}
	for _, group := range groups {
		for _, candidate := range order {
			if candidate.signer != group.signer || candidate.writable != group.writable {
				continue
			}
			message.AccountKeys = append(message.AccountKeys, candidate.address)
			switch {
			case candidate.signer && !candidate.writable:
				message.ReadonlySigned++
			case !candidate.signer && !candidate.writable:
				message.ReadonlyUnsigned++
			}
			if candidate.signer {
				message.RequiredSignatures++
			}
		}
	}

	index := make(map[Address]uint8, len(message.AccountKeys))
	for position, address := range message.AccountKeys {
		index[address] = uint8(position)
	}
	for _, instruction := range instructions {
		compiled := CompiledInstruction{
			ProgramIndex: index[instruction.Program],
			Data:         instruction.Data,
		}
		for _, meta := range instruction.Accounts {
			compiled.AccountIndexes = append(compiled.AccountIndexes, index[meta.Address])
		}
		message.CompiledInstructions = append(message.CompiledInstructions, compiled)
	}
	return message, nil
}

// Serialize encodes the message in wire format. The result is what
// signers sign.
func (m *Message) Serialize() []byte {
	out := []byte{m.RequiredSignatures, m.ReadonlySigned, m.ReadonlyUnsigned}
	out = appendCompactU16(out, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		out = append(out, key[:]...)
	}
	out = append(out, m.RecentBlockhash[:]...)
	out = appendCompactU16(out, len(m.CompiledInstructions))
	for _, instruction := range m.CompiledInstructions {
		out = append(out, instruction.ProgramIndex)
		out = appendCompactU16(out, len(instruction.AccountIndexes))
		out = append(out, instruction.AccountIndexes...)
		out = appendCompactU16(out, len(instruction.Data))
		out = append(out, instruction.Data...)
	}
	return out
}

// Transaction is a signed message ready for submission.
type Transaction struct {
	Signatures []Signature
	Message    *Message
}

// SignTransaction compiles instructions with signers[0] as fee payer and
// signs the message with every signer. Each required signer must be
// present exactly once.
func SignTransaction(blockhash [32]byte, instructions []Instruction, signers ...Signer) (*Transaction, error) {
	if len(signers) == 0 {
		return nil, errors.New("ledger: at least one signer is required")
	}
	message, err := CompileMessage(signers[0].PublicKey(), blockhash, instructions)
	if err != nil {
		return nil, err
	}

	bySigner := make(map[Address]Signer, len(signers))
	for _, signer := range signers {
		bySigner[signer.PublicKey()] = signer
	}

	payload := message.Serialize()
	transaction := &Transaction{
		Signatures: make([]Signature, message.RequiredSignatures),
		Message:    message,
	}
	for position := range int(message.RequiredSignatures) {
		key := message.AccountKeys[position]
		signer, ok := bySigner[key]
		if !ok {
			return nil, fmt.Errorf("ledger: missing signer for %s", key)
		}
		signature, err := signer.Sign(payload)
		if err != nil {
			return nil, fmt.Errorf("ledger: signing with %s: %w", key, err)
		}
		transaction.Signatures[position] = signature
	}
	return transaction, nil
}

// ID returns the fee payer's signature, which is the transaction id.
func (t *Transaction) ID() Signature {
	if len(t.Signatures) == 0 {
		return Signature{}
	}
	return t.Signatures[0]
}

// Serialize encodes the signed transaction in wire format.
func (t *Transaction) Serialize() []byte {
	out := appendCompactU16(nil, len(t.Signatures))
	for _, signature := range t.Signatures {
		out = append(out, signature[:]...)
	}
	return append(out, t.Message.Serialize()...)
}

// appendCompactU16 appends the ledger's variable-length u16 encoding:
// seven bits per byte, high bit set on all but the last byte.
func appendCompactU16(out []byte, value int) []byte {
	for {
		low := byte(value & 0x7f)
		value >>= 7
		if value == 0 {
			return append(out, low)
		}
		out = append(out, low|0x80)
	}
}
