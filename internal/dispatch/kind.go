package dispatch

import (
	"context"
	"errors"

	"github.com/lumenlabs/lumen-core/internal/crypt"
	"github.com/lumenlabs/lumen-core/internal/transport"
	"github.com/lumenlabs/lumen-core/internal/wire"
)

// ErrorKind classifies a failed dispatch outcome. Callers branch on the
// kind, not on the wrapped error chain, so the taxonomy is identical for
// both transports.
type ErrorKind string

const (
	// KindNone marks a successful outcome.
	KindNone ErrorKind = ""

	// KindInvalidKey is a key-material precondition failure; never retried.
	KindInvalidKey ErrorKind = "invalid_key"

	// KindUnreachable means the device (or relay) could not be reached.
	KindUnreachable ErrorKind = "unreachable"

	// KindTimeout means no response arrived within the attempt timeout.
	KindTimeout ErrorKind = "timeout"

	// KindIntegrity means a response frame failed its integrity check.
	KindIntegrity ErrorKind = "integrity"

	// KindDecode means a response could not be parsed.
	KindDecode ErrorKind = "decode"

	// KindAuth means the cloud credential was rejected; never retried.
	KindAuth ErrorKind = "auth"

	// KindDeadlineExceeded means the global dispatch deadline elapsed
	// before the device reached a terminal outcome.
	KindDeadlineExceeded ErrorKind = "deadline_exceeded"

	// KindCancelled means the dispatch call was cancelled.
	KindCancelled ErrorKind = "cancelled"
)

// KindOf maps an error from any layer onto the outcome taxonomy.
// Unrecognised errors classify as KindDecode so they are visible in
// results rather than silently swallowed.
func KindOf(err error) ErrorKind {
	// Transport kinds are checked before bare context errors: a
	// per-attempt timeout wraps context.DeadlineExceeded but must stay a
	// retryable KindTimeout, not the terminal global-deadline kind.
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, crypt.ErrInvalidKey):
		return KindInvalidKey
	case errors.Is(err, transport.ErrAuth):
		return KindAuth
	case errors.Is(err, transport.ErrUnreachable):
		return KindUnreachable
	case errors.Is(err, transport.ErrTimeout), errors.Is(err, transport.ErrExpired):
		return KindTimeout
	case errors.Is(err, wire.ErrIntegrity):
		return KindIntegrity
	case errors.Is(err, wire.ErrDecode), errors.Is(err, crypt.ErrDecode),
		errors.Is(err, wire.ErrUnknownCommandType):
		return KindDecode
	case errors.Is(err, context.DeadlineExceeded):
		return KindDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindDecode
	}
}

// retryable reports whether a kind may be retried on the same transport.
func (k ErrorKind) retryable() bool {
	switch k {
	case KindUnreachable, KindTimeout, KindIntegrity, KindDecode:
		return true
	default:
		return false
	}
}

// fallsThrough reports whether a kind triggers an immediate switch to the
// next transport under try-local-then-cloud.
func (k ErrorKind) fallsThrough() bool {
	return k == KindUnreachable || k == KindTimeout
}

// terminal reports whether a kind ends the device's dispatch outright.
func (k ErrorKind) terminal() bool {
	switch k {
	case KindInvalidKey, KindAuth, KindDeadlineExceeded, KindCancelled:
		return true
	default:
		return false
	}
}
