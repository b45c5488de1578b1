// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package signingkey manages the federation signing keys handed to each
// node. A key file holds 32 random bytes hex-encoded on one line, the
// format the server reads from federation.signing_key_path.
//
// Keys are identified in logs by [Fingerprint], never by content.
package signingkey

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Size is the raw key length in bytes.
const Size = 32

// Key is a node signing key.
type Key [Size]byte

// Fingerprint is the first 8 bytes of the key's BLAKE3 hash, hex
// encoded.
func (k Key) Fingerprint() string {
	sum := blake3.Sum256(k[:])
	return hex.EncodeToString(sum[:8])
}

// Ensure returns the key stored at path, generating and writing a new
// one if the file does not exist. created reports which happened.
func Ensure(path string) (key Key, created bool, err error) {
	key, err = Load(path)
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Key{}, false, err
	}

	if _, err := rand.Read(key[:]); err != nil {
		return Key{}, false, fmt.Errorf("signingkey: generating: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Key{}, false, fmt.Errorf("signingkey: %w", err)
	}
	encoded := hex.EncodeToString(key[:]) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return Key{}, false, fmt.Errorf("signingkey: %w", err)
	}
	return key, true, nil
}

// Load reads and validates the key at path.
func Load(path string) (Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Key{}, fmt.Errorf("signingkey: %w", err)
	}
	raw, err := hex.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil {
		return Key{}, fmt.Errorf("signingkey: %s: not hex: %w", path, err)
	}
	if len(raw) != Size {
		return Key{}, fmt.Errorf("signingkey: %s: %d bytes, want %d", path, len(raw), Size)
	}
	var key Key
	copy(key[:], raw)
	return key, nil
}
