package transport

import "errors"

var (
	// ErrUnreachable is returned when the device (or the relay) cannot be
	// reached at all: no known local address, connection refused, or the
	// relay reports the device offline.
	ErrUnreachable = errors.New("transport: device unreachable")

	// ErrTimeout is returned when no response arrives within the
	// per-attempt timeout.
	ErrTimeout = errors.New("transport: attempt timed out")

	// ErrAuth is returned when the cloud credential is missing, expired or
	// rejected. Auth failures are terminal for the dispatch call; the
	// dispatcher never retries them.
	ErrAuth = errors.New("transport: authentication failed")

	// ErrExpired is returned when a command's time to live elapsed before
	// it could be sent.
	ErrExpired = errors.New("transport: command ttl expired")
)
