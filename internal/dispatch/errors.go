package dispatch

import "errors"

var (
	// ErrNilRegistry is returned when a dispatcher is created without a
	// registry.
	ErrNilRegistry = errors.New("dispatch: registry is required")

	// ErrNoTransport is returned when the configured strategy has no
	// opener to serve it.
	ErrNoTransport = errors.New("dispatch: no transport configured for strategy")

	// ErrNoTargets is returned when a dispatch call names no devices.
	ErrNoTargets = errors.New("dispatch: no target devices")

	// ErrUnknownStrategy is returned for an unrecognised strategy name.
	ErrUnknownStrategy = errors.New("dispatch: unknown strategy")
)
