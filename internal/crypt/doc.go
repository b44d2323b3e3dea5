// Package crypt implements the symmetric cipher used by the local device
// protocol: AES-128-CBC with PKCS#7 padding and a fresh random IV
// prepended to every ciphertext.
//
// Key material is always associated with a device identity in the registry,
// never with a session; sessions look keys up per attempt. Three sources of
// key material exist, in resolution order:
//
//  1. An explicit override (32 hex characters, ParseKey)
//  2. A per-device key stored in the registry
//  3. The well-known development key (DevKey) accepted by unonboarded
//     devices
//
// Passphrase-derived keys (DeriveKey) are a convenience on top of (1) for
// installations that prefer a memorable secret over raw hex.
package crypt
