package discovery

import "errors"

var (
	// ErrNilRegistry is returned when a prober is created without a registry.
	ErrNilRegistry = errors.New("discovery: registry is required")

	// ErrInvalidWindow is returned when the discovery window is not positive.
	ErrInvalidWindow = errors.New("discovery: window must be positive")
)
