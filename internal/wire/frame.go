package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/lumenlabs/lumen-core/internal/crypt"
	"github.com/lumenlabs/lumen-core/internal/device"
)

// ProtocolVersion is the local protocol version this codec speaks.
//
// Version 2 replaced the v1 IV-handshake stream with self-contained
// frames: every frame carries its own IV and an HMAC tag, so a single
// request/response exchange needs no connection state.
const ProtocolVersion byte = 0x02

// Command-type bytes on the local wire.
const (
	cmdTypeGet    byte = 0x01
	cmdTypeSet    byte = 0x02
	cmdTypePing   byte = 0x03
	cmdTypeReboot byte = 0x04
)

// Frame size constants.
const (
	// headerSize is version(1) + cmd-type(1) + payload length(2).
	headerSize = 4

	// ivSize is the AES-CBC initialisation vector length.
	ivSize = 16

	// TagSize is the HMAC-SHA256 integrity tag length.
	TagSize = sha256.Size

	// minFrameSize is the smallest well-formed frame: header, IV, one
	// cipher block, tag.
	minFrameSize = headerSize + ivSize + 16 + TagSize

	// MaxPayloadSize is the largest ciphertext the 16-bit length field
	// can describe.
	MaxPayloadSize = 0xFFFF
)

// CommandTypeByte maps a command type to its wire byte.
func CommandTypeByte(t device.CommandType) (byte, error) {
	switch t {
	case device.CommandGet:
		return cmdTypeGet, nil
	case device.CommandSet:
		return cmdTypeSet, nil
	case device.CommandPing:
		return cmdTypePing, nil
	case device.CommandReboot:
		return cmdTypeReboot, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommandType, t)
	}
}

// EncodeFrame encrypts plaintext and assembles a local protocol frame:
//
//	[version:1][cmd-type:1][len:2 BE][IV:16][ciphertext:len][tag:32]
//
// len counts ciphertext bytes only (the IV is fixed-size and excluded).
// The tag is HMAC-SHA256 over everything before it, keyed with the same
// key as the cipher (encrypt-then-MAC).
//
// Key errors surface as crypt.ErrInvalidKey before any encryption work.
func EncodeFrame(key []byte, cmdType device.CommandType, plaintext []byte) ([]byte, error) {
	tb, err := CommandTypeByte(cmdType)
	if err != nil {
		return nil, err
	}

	sealed, err := crypt.Encrypt(key, plaintext)
	if err != nil {
		return nil, err
	}
	iv, ciphertext := sealed[:ivSize], sealed[ivSize:]
	if len(ciphertext) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload %d exceeds %d bytes", ErrDecode, len(ciphertext), MaxPayloadSize)
	}

	frame := make([]byte, 0, headerSize+ivSize+len(ciphertext)+TagSize)
	frame = append(frame, ProtocolVersion, tb)
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(ciphertext)))
	frame = append(frame, iv...)
	frame = append(frame, ciphertext...)

	mac := hmac.New(sha256.New, key)
	mac.Write(frame)
	frame = mac.Sum(frame)

	return frame, nil
}

// DecodeFrame validates and decrypts a received frame.
//
// The integrity tag is checked in constant time before any payload byte is
// interpreted; a mismatch returns ErrIntegrity and the frame is treated as
// discarded. Structural problems (short frame, wrong version, length
// mismatch) return ErrDecode. Decryption and padding failures surface the
// crypt package's errors.
func DecodeFrame(key []byte, frame []byte) (device.CommandType, []byte, error) {
	if err := crypt.ValidateKey(key); err != nil {
		return "", nil, err
	}

	if len(frame) < minFrameSize {
		return "", nil, fmt.Errorf("%w: frame too short (%d bytes, need at least %d)", ErrDecode, len(frame), minFrameSize)
	}
	if frame[0] != ProtocolVersion {
		return "", nil, fmt.Errorf("%w: unsupported protocol version 0x%02x", ErrDecode, frame[0])
	}

	payloadLen := int(binary.BigEndian.Uint16(frame[2:4]))
	body := headerSize + ivSize + payloadLen
	if len(frame) != body+TagSize {
		return "", nil, fmt.Errorf("%w: length field %d inconsistent with frame size %d", ErrDecode, payloadLen, len(frame))
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(frame[:body])
	if !hmac.Equal(mac.Sum(nil), frame[body:]) {
		return "", nil, ErrIntegrity
	}

	cmdType, err := commandTypeFromByte(frame[1])
	if err != nil {
		return "", nil, err
	}

	plaintext, err := crypt.Decrypt(key, frame[headerSize:body])
	if err != nil {
		return "", nil, err
	}
	return cmdType, plaintext, nil
}

func commandTypeFromByte(b byte) (device.CommandType, error) {
	switch b {
	case cmdTypeGet:
		return device.CommandGet, nil
	case cmdTypeSet:
		return device.CommandSet, nil
	case cmdTypePing:
		return device.CommandPing, nil
	case cmdTypeReboot:
		return device.CommandReboot, nil
	default:
		return "", fmt.Errorf("%w: 0x%02x", ErrUnknownCommandType, b)
	}
}

// FrameSize returns the total frame length implied by a 4-byte header, or
// an error if the header is malformed. Transports use this to know how
// many bytes remain to read after the header.
func FrameSize(header []byte) (int, error) {
	if len(header) < headerSize {
		return 0, fmt.Errorf("%w: header too short", ErrDecode)
	}
	if header[0] != ProtocolVersion {
		return 0, fmt.Errorf("%w: unsupported protocol version 0x%02x", ErrDecode, header[0])
	}
	payloadLen := int(binary.BigEndian.Uint16(header[2:4]))
	return headerSize + ivSize + payloadLen + TagSize, nil
}
