// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/solbet-labs/keeper/ledger"
	"github.com/solbet-labs/keeper/lib/game"
)

// Kind is a failure category. It decides whether a game is retried.
type Kind int

const (
	// Unknown failures are logged with their full text and retried.
	Unknown Kind = iota
	// TransientNetwork failures are retried next pass.
	TransientNetwork
	// MalformedAccount failures are reported and retried next pass,
	// so a program upgrade does not blind the keeper permanently.
	MalformedAccount
	// UnrecoverableAccountState failures add the game to the skip set.
	UnrecoverableAccountState
	// AlreadyFinalizedElsewhere failures lost a race with another actor
	// and are absorbed.
	AlreadyFinalizedElsewhere
)

func (k Kind) String() string {
	switch k {
	case Unknown:
		return "unknown"
	case TransientNetwork:
		return "transient_network"
	case MalformedAccount:
		return "malformed_account"
	case UnrecoverableAccountState:
		return "unrecoverable_account_state"
	case AlreadyFinalizedElsewhere:
		return "already_finalized_elsewhere"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Program error numbers the classifier recognizes.
const (
	// ErrorAccountNotInitialized means a required account, usually a
	// payout recipient's token account, does not exist.
	ErrorAccountNotInitialized = 3012
	errorInvalidGameState      = 6000
	errorGameAlreadySettled    = 6001
)

var (
	transientMarkers = []string{
		"Blockhash not found",
		"Node is behind",
		"Too many requests",
	}
	finalizedCodes = map[string]bool{
		"InvalidGameState":   true,
		"GameAlreadySettled": true,
	}
	alreadyProcessedMarker = "This transaction has already been processed"
)

// Failure is a classified error from handling one game.
type Failure struct {
	Kind Kind
	// ErrorNumber and ErrorCode are the program error parsed from the
	// diagnostic text; ErrorNumber is zero when none was found.
	ErrorNumber int
	ErrorCode   string
	// Fingerprint identifies the diagnostic text of Unknown failures so
	// repeats can be correlated across passes.
	Fingerprint string
	Err         error
}

func (f *Failure) Error() string {
	if f.ErrorNumber != 0 {
		return fmt.Sprintf("%s (error %d %s): %v", f.Kind, f.ErrorNumber, f.ErrorCode, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// ClassifyError maps an error from decoding or submitting a game into
// a Failure. It returns nil for a nil error.
func ClassifyError(err error) *Failure {
	if err == nil {
		return nil
	}
	var existing *Failure
	if errors.As(err, &existing) {
		return existing
	}

	failure := &Failure{Kind: Unknown, Err: err}
	text := err.Error()

	var transportErr *ledger.TransportError
	switch {
	case errors.As(err, &transportErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, ledger.ErrConfirmationTimeout),
		errors.Is(err, ledger.ErrBlockhashExpired),
		containsAny(text, transientMarkers):
		failure.Kind = TransientNetwork
		return failure
	case errors.Is(err, game.ErrMalformedAccount):
		failure.Kind = MalformedAccount
		return failure
	}

	if number, code, ok := ParseErrorCode(text); ok {
		failure.ErrorNumber = number
		failure.ErrorCode = code
		switch {
		case number == ErrorAccountNotInitialized:
			failure.Kind = UnrecoverableAccountState
		case finalizedCodes[code], number == errorInvalidGameState, number == errorGameAlreadySettled:
			failure.Kind = AlreadyFinalizedElsewhere
		}
	}
	if failure.Kind == Unknown && strings.Contains(text, alreadyProcessedMarker) {
		failure.Kind = AlreadyFinalizedElsewhere
	}
	if failure.Kind == Unknown {
		failure.Fingerprint = fingerprint(text)
	}
	return failure
}

// ParseErrorCode extracts a program error from diagnostic text. It
// recognizes the framework form "Error Code: Name. Error Number: N."
// and the runtime form "custom program error: 0x..." (hex or decimal).
func ParseErrorCode(text string) (number int, code string, ok bool) {
	_, numberText, hasNumber := strings.Cut(text, "Error Number: ")
	_, codeText, hasCode := strings.Cut(text, "Error Code: ")
	if hasNumber && hasCode {
		numberText, _, _ = strings.Cut(numberText, ".")
		codeText, _, _ = strings.Cut(codeText, ".")
		parsed, err := strconv.Atoi(strings.TrimSpace(numberText))
		if err == nil {
			return parsed, strings.TrimSpace(codeText), true
		}
	}

	if _, rest, found := strings.Cut(text, "custom program error: "); found {
		end := strings.IndexFunc(rest, func(r rune) bool {
			return !strings.ContainsRune("0123456789abcdefABCDEFxX", r)
		})
		if end >= 0 {
			rest = rest[:end]
		}
		parsed, err := strconv.ParseInt(rest, 0, 64)
		if err == nil {
			return int(parsed), "custom program error", true
		}
	}
	return 0, "", false
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// fingerprint is a short stable digest of diagnostic text.
func fingerprint(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}
