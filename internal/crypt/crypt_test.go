package crypt

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := DevKey()

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("on")},
		{"exactly one block", bytes.Repeat([]byte{0x41}, 16)},
		{"json command", []byte(`{"type":"set","color":{"red":255,"green":0,"blue":0}}`)},
		{"binary", []byte{0x00, 0xFF, 0x10, 0x80, 0x7F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := Encrypt(key, tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() unexpected error: %v", err)
			}

			got, err := Decrypt(key, ct)
			if err != nil {
				t.Fatalf("Decrypt() unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.plaintext) {
				t.Errorf("round trip = %x, want %x", got, tt.plaintext)
			}
		})
	}
}

func TestEncryptFreshIVPerCall(t *testing.T) {
	key := DevKey()
	plaintext := []byte("same input twice")

	a, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() unexpected error: %v", err)
	}
	b, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() unexpected error: %v", err)
	}

	if bytes.Equal(a[:16], b[:16]) {
		t.Error("two encryptions produced the same IV")
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions produced identical ciphertext")
	}
}

func TestEncryptInvalidKey(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
	}{
		{"nil", nil},
		{"too short", make([]byte, 8)},
		{"too long (AES-256 size)", make([]byte, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encrypt(tt.key, []byte("x")); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Encrypt() error = %v, want ErrInvalidKey", err)
			}
			if _, err := Decrypt(tt.key, make([]byte, 32)); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Decrypt() error = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestDecryptMalformedCiphertext(t *testing.T) {
	key := DevKey()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"shorter than IV plus one block", make([]byte, 24)},
		{"not a block multiple", make([]byte, 16+17)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(key, tt.data); !errors.Is(err, ErrDecode) {
				t.Errorf("Decrypt() error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestDecryptBadPadding(t *testing.T) {
	key := DevKey()

	ct, err := Encrypt(key, []byte("padding victim"))
	if err != nil {
		t.Fatalf("Encrypt() unexpected error: %v", err)
	}

	// Corrupt the last ciphertext byte so padding fails after decryption.
	ct[len(ct)-1] ^= 0xFF

	if _, err := Decrypt(key, ct); !errors.Is(err, ErrDecode) {
		t.Errorf("Decrypt() error = %v, want ErrDecode", err)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"dev key hex", "00112233445566778899AABBCCDDEEFF", false},
		{"lowercase hex", "00112233445566778899aabbccddeeff", false},
		{"too short", "0011223344", true},
		{"not hex", "zz112233445566778899AABBCCDDEEFF", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("ParseKey() error = %v, want ErrInvalidKey", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey() unexpected error: %v", err)
			}
			if len(key) != KeySize {
				t.Errorf("ParseKey() key length = %d, want %d", len(key), KeySize)
			}
		})
	}
}

func TestDeriveKey(t *testing.T) {
	a := DeriveKey("hunter2")
	b := DeriveKey("hunter2")
	c := DeriveKey("hunter3")

	if len(a) != KeySize {
		t.Fatalf("DeriveKey() length = %d, want %d", len(a), KeySize)
	}
	if !bytes.Equal(a, b) {
		t.Error("DeriveKey() is not deterministic for the same passphrase")
	}
	if bytes.Equal(a, c) {
		t.Error("DeriveKey() produced the same key for different passphrases")
	}
}
