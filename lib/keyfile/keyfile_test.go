// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package keyfile

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"github.com/solbet-labs/keeper/ledger"
)

// Signer is the interface the keeper needs from a Keypair.
var _ ledger.Signer = (*Keypair)(nil)

func testKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for index := range seed {
		seed[index] = byte(index + 1)
	}
	return ed25519.NewKeyFromSeed(seed)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func checkKeypair(t *testing.T, keypair *Keypair, privateKey ed25519.PrivateKey) {
	t.Helper()
	public := privateKey.Public().(ed25519.PublicKey)
	if got := keypair.PublicKey(); string(got[:]) != string(public) {
		t.Errorf("PublicKey = %s, want %x", got, public)
	}
	message := []byte("solbet keeper message")
	signature, err := keypair.Sign(message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !ed25519.Verify(public, message, signature[:]) {
		t.Error("signature does not verify")
	}
}

func TestLoadPlaintext(t *testing.T) {
	privateKey := testKey(t)
	path := writeFile(t, "keeper.json", append(Encode(privateKey), '\n'))

	keypair, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer keypair.Close()
	checkKeypair(t, keypair, privateKey)
}

func TestLoadSealed(t *testing.T) {
	privateKey := testKey(t)
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity: %v", err)
	}
	sealed, err := Seal(Encode(privateKey), []string{identity.Recipient().String()})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatal("IsSealed(Seal output) = false")
	}
	keyPath := writeFile(t, "keeper.json.age", sealed)
	identityPath := writeFile(t, "identity.txt", []byte("# keeper identity\n"+identity.String()+"\n"))

	keypair, err := Load(keyPath, identityPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer keypair.Close()
	checkKeypair(t, keypair, privateKey)

	t.Run("missing identity", func(t *testing.T) {
		_, err := Load(keyPath, "")
		if err == nil || !strings.Contains(err.Error(), "no identity file") {
			t.Errorf("err = %v, want missing identity error", err)
		}
	})

	t.Run("wrong identity", func(t *testing.T) {
		other, err := age.GenerateX25519Identity()
		if err != nil {
			t.Fatalf("GenerateX25519Identity: %v", err)
		}
		wrongPath := writeFile(t, "other.txt", []byte(other.String()))
		if _, err := Load(keyPath, wrongPath); err == nil {
			t.Error("Load with the wrong identity succeeded")
		}
	})
}

func TestParseRejects(t *testing.T) {
	valid := Encode(testKey(t))
	mismatched := testKey(t)
	mismatched[40] ^= 0xff

	tests := []struct {
		name string
		text string
		want string
	}{
		{"not json", "hello", "not a JSON byte array"},
		{"too short", "[1,2,3]", "has 3 bytes"},
		{"out of range", strings.Replace(string(valid), "[1,", "[256,", 1), "out of range"},
		{"public key mismatch", string(Encode(mismatched)), "does not match"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.text))
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("Parse error = %v, want containing %q", err, test.want)
			}
		})
	}
}

func TestSealRequiresRecipient(t *testing.T) {
	if _, err := Seal([]byte("x"), nil); err == nil {
		t.Error("Seal with no recipients succeeded")
	}
	if _, err := Seal([]byte("x"), []string{"age1bogus"}); err == nil {
		t.Error("Seal with an invalid recipient succeeded")
	}
}

func TestIsSealed(t *testing.T) {
	if IsSealed([]byte("[1,2,3]")) {
		t.Error("JSON keypair reported as sealed")
	}
	if !IsSealed([]byte("age-encryption.org/v1\n-> X25519 abc\n")) {
		t.Error("binary age header not recognized")
	}
}

func TestCloseZeroesKey(t *testing.T) {
	keypair, err := Parse(Encode(testKey(t)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	buffer := keypair.key
	if err := keypair.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := keypair.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if buffer.data != nil {
		t.Error("buffer still references its mapping after Close")
	}

	defer func() {
		if recover() == nil {
			t.Error("Sign after Close did not panic")
		}
	}()
	keypair.Sign([]byte("late"))
}

func TestSignRepeatedly(t *testing.T) {
	privateKey := testKey(t)
	keypair, err := Parse(Encode(privateKey))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer keypair.Close()

	message := []byte("settle game")
	want := ed25519.Sign(privateKey, message)
	for attempt := range 3 {
		signature, err := keypair.Sign(message)
		if err != nil {
			t.Fatalf("Sign attempt %d: %v", attempt, err)
		}
		if string(signature[:]) != string(want) {
			t.Fatalf("Sign attempt %d = %x, want %x", attempt, signature, want)
		}
	}
}
