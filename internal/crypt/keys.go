package crypt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Well-known development key. Factory-fresh and unonboarded devices accept
// this key, which is how the "dev" environment talks to bulbs before they
// have per-device key material.
const devKeyHex = "00112233445566778899AABBCCDDEEFF"

// Key derivation parameters for passphrase keys.
const (
	deriveIterations = 4096
	deriveSalt       = "lumen-local-proto-v2"
)

// DevKey returns a fresh copy of the well-known development key.
func DevKey() []byte {
	key, _ := hex.DecodeString(devKeyHex)
	return key
}

// ParseKey decodes user-supplied key material given as 32 hex characters.
// Returns ErrInvalidKey for anything that does not decode to 16 bytes.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid hex: %w", ErrInvalidKey, err)
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveKey derives a 16-byte AES key from a passphrase using
// PBKDF2-HMAC-SHA256 with a fixed module salt. Both ends derive the same
// key from the same passphrase, so the salt is a protocol constant rather
// than per-device state.
func DeriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(deriveSalt), deriveIterations, KeySize, sha256.New)
}
