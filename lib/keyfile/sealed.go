// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package keyfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// binaryHeader starts every unarmored age file.
const binaryHeader = "age-encryption.org/v1\n"

// IsSealed reports whether data is an age file, binary or armored.
func IsSealed(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte(binaryHeader)) || bytes.HasPrefix(trimmed, []byte(armor.Header))
}

// Seal encrypts plaintext to the given age recipients (age1... keys)
// and returns ASCII-armored ciphertext.
func Seal(plaintext []byte, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, errors.New("keyfile: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("keyfile: parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var ciphertext bytes.Buffer
	armored := armor.NewWriter(&ciphertext)
	writer, err := age.Encrypt(armored, recipients...)
	if err != nil {
		return nil, fmt.Errorf("keyfile: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("keyfile: encrypting: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("keyfile: finalizing encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("keyfile: finalizing armor: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// open decrypts an age file with the identities in identityPath. The
// plaintext is returned in a locked buffer.
func open(ciphertext []byte, identityPath string) (*lockedBuffer, error) {
	if identityPath == "" {
		return nil, errors.New("keyfile: key file is age-encrypted but no identity file is configured")
	}
	identityData, err := os.ReadFile(identityPath)
	if err != nil {
		return nil, fmt.Errorf("keyfile: reading identity file: %w", err)
	}
	identities, err := age.ParseIdentities(bytes.NewReader(identityData))
	zero(identityData)
	if err != nil {
		return nil, fmt.Errorf("keyfile: parsing identity file %s: %w", identityPath, err)
	}

	var source io.Reader = bytes.NewReader(ciphertext)
	if bytes.HasPrefix(bytes.TrimLeft(ciphertext, " \t\r\n"), []byte(armor.Header)) {
		source = armor.NewReader(bufio.NewReader(source))
	}
	reader, err := age.Decrypt(source, identities...)
	if err != nil {
		return nil, fmt.Errorf("keyfile: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		zero(plaintext)
		return nil, fmt.Errorf("keyfile: reading decrypted key: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, errors.New("keyfile: decrypted key file is empty")
	}
	return lockBytes(plaintext)
}
