package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lumenlabs/lumen-core/internal/crypt"
	"github.com/lumenlabs/lumen-core/internal/transport"
	"github.com/lumenlabs/lumen-core/internal/wire"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "invalid key", err: crypt.ErrInvalidKey, want: KindInvalidKey},
		{name: "auth", err: transport.ErrAuth, want: KindAuth},
		{name: "unreachable", err: transport.ErrUnreachable, want: KindUnreachable},
		{name: "timeout", err: transport.ErrTimeout, want: KindTimeout},
		{name: "expired command", err: transport.ErrExpired, want: KindTimeout},
		{name: "integrity", err: wire.ErrIntegrity, want: KindIntegrity},
		{name: "decode", err: wire.ErrDecode, want: KindDecode},
		{name: "crypt decode", err: crypt.ErrDecode, want: KindDecode},
		{name: "deadline", err: context.DeadlineExceeded, want: KindDeadlineExceeded},
		{name: "cancelled", err: context.Canceled, want: KindCancelled},
		{name: "wrapped", err: fmt.Errorf("attempt 2: %w", transport.ErrUnreachable), want: KindUnreachable},
		{
			// A per-attempt timeout carries the context error inside the
			// transport error; it must stay retryable.
			name: "attempt timeout wrapping deadline",
			err:  fmt.Errorf("%w: %w", transport.ErrTimeout, context.DeadlineExceeded),
			want: KindTimeout,
		},
		{name: "unknown error", err: errors.New("mystery"), want: KindDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindProperties(t *testing.T) {
	retryable := []ErrorKind{KindUnreachable, KindTimeout, KindIntegrity, KindDecode}
	for _, k := range retryable {
		if !k.retryable() {
			t.Errorf("%q.retryable() = false, want true", k)
		}
		if k.terminal() {
			t.Errorf("%q.terminal() = true, want false", k)
		}
	}

	terminal := []ErrorKind{KindInvalidKey, KindAuth, KindDeadlineExceeded, KindCancelled}
	for _, k := range terminal {
		if k.retryable() {
			t.Errorf("%q.retryable() = true, want false", k)
		}
		if !k.terminal() {
			t.Errorf("%q.terminal() = false, want true", k)
		}
	}

	if !KindUnreachable.fallsThrough() || !KindTimeout.fallsThrough() {
		t.Error("unreachable and timeout must fall through to the next transport")
	}
	if KindIntegrity.fallsThrough() || KindDecode.fallsThrough() {
		t.Error("integrity and decode must retry the same transport first")
	}
}
