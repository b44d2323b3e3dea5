package registry

import "errors"

// Domain errors for the registry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, registry.ErrNotFound) {
//	    // trigger discovery for the missing identity
//	}
var (
	// ErrNotFound is returned when a unit id has no record.
	ErrNotFound = errors.New("registry: device not found")

	// ErrEmptyUnitID is returned when an operation is attempted with an
	// empty unit id.
	ErrEmptyUnitID = errors.New("registry: empty unit id")
)
