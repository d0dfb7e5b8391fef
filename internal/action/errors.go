package action

import "errors"

// Domain errors for action handling.
var (
	// ErrUnsupported is returned when no action of the requested name exists.
	ErrUnsupported = errors.New("action: unsupported")

	// ErrActionNotFound is returned when an action request ID is unknown.
	ErrActionNotFound = errors.New("action: request not found")

	// ErrDuplicateKind is returned when registering a name twice.
	ErrDuplicateKind = errors.New("action: kind already registered")
)
