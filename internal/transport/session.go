package transport

import (
	"context"

	"github.com/lumenlabs/lumen-core/internal/device"
	"github.com/lumenlabs/lumen-core/internal/registry"
)

// Kind names a transport path.
type Kind string

const (
	// KindLocal is the direct encrypted exchange on the local network.
	KindLocal Kind = "local"

	// KindCloud is the relay-forwarded path through the cloud API.
	KindCloud Kind = "cloud"
)

// Session is one live conversation with one device. A session is owned
// exclusively by the dispatch attempt that opened it and must be closed
// when the attempt completes or times out; it is never shared across
// devices or reused across top-level dispatch calls.
type Session interface {
	// Send delivers the command and waits for the device's reply. The
	// context bounds the whole exchange; expiry surfaces as ErrTimeout.
	Send(ctx context.Context, cmd device.Command) (*device.Response, error)

	// Close releases the session's underlying resources. Safe to call
	// after a failed Send.
	Close() error
}

// Opener creates sessions for one transport path. The dispatcher holds
// one opener per configured transport and opens a fresh session per
// attempt.
//
// key is the AES key resolved for the target device; the cloud path
// ignores it.
type Opener interface {
	Open(ctx context.Context, rec registry.Record, key []byte) (Session, error)
	Kind() Kind
}

// Logger defines the logging interface used by transport sessions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
