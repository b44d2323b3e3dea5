package wire

import "errors"

// Domain errors for the wire package.
var (
	// ErrIntegrity is returned when a frame's integrity tag does not match.
	// The frame is discarded; it is never partially exposed to the caller.
	ErrIntegrity = errors.New("wire: integrity tag mismatch")

	// ErrDecode is returned when a frame or cloud response is structurally
	// malformed: truncated header, bad version, inconsistent length field,
	// or unparseable JSON.
	ErrDecode = errors.New("wire: decode failed")

	// ErrUnknownCommandType is returned when a command type has no wire
	// encoding.
	ErrUnknownCommandType = errors.New("wire: unknown command type")
)
