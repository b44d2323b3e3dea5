package crypt

import "errors"

// Domain errors for the crypt package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, crypt.ErrInvalidKey) {
//	    // abort before any network I/O
//	}
var (
	// ErrInvalidKey is returned when key material is not exactly 16 bytes.
	// This is a local precondition failure, never a network failure, and
	// is checked before any I/O is attempted.
	ErrInvalidKey = errors.New("crypt: invalid key (must be 16 bytes)")

	// ErrDecode is returned when ciphertext cannot be decrypted: length is
	// not a multiple of the block size, the IV prefix is missing, or
	// padding validation fails after decryption.
	ErrDecode = errors.New("crypt: ciphertext decode failed")
)
