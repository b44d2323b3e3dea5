// Package wire frames commands and responses for both transports.
//
// # Local protocol (version 2)
//
// Every frame is self-contained:
//
//	[version:1][cmd-type:1][len:2 BE][IV:16][ciphertext:len][tag:32]
//
// The payload is AES-128-CBC encrypted (package crypt) and the whole frame
// up to the tag is authenticated with HMAC-SHA256 keyed by the same key
// (encrypt-then-MAC). DecodeFrame verifies the tag in constant time before
// any payload byte is exposed; a mismatch is ErrIntegrity and the frame is
// discarded, never retried as a different response.
//
// The tag algorithm and field order are this module's own protocol
// version, not an inferred on-wire compatibility with any other firmware
// line.
//
// # Cloud protocol
//
// The relay accepts {"unit_ids": [...], "command": {...}} and answers with
// an array of per-device status objects. Decoding maps relay statuses onto
// the same outcome taxonomy the local path uses, so callers stay
// transport-agnostic.
package wire
