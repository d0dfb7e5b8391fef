package thing

import "errors"

// Domain errors for the thing package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, thing.ErrReadOnly) {
//	    // reject the write request
//	}
var (
	// ErrReadOnly is returned when an external write targets a read-only property.
	ErrReadOnly = errors.New("thing: property is read-only")

	// ErrInvalidValue is returned when an external write carries NaN or Inf.
	ErrInvalidValue = errors.New("thing: value is not a finite number")

	// ErrDuplicateName is returned when adding a property whose name is already used.
	ErrDuplicateName = errors.New("thing: duplicate property name")

	// ErrPropertyNotFound is returned when a named property does not exist.
	ErrPropertyNotFound = errors.New("thing: property not found")

	// ErrThingNotFound is returned when a thing ID is not in the registry.
	ErrThingNotFound = errors.New("thing: not found")

	// ErrDuplicateThing is returned when two registered things share an ID.
	ErrDuplicateThing = errors.New("thing: duplicate thing id")

	// ErrInvalidRegistry is returned when a registry is constructed with invalid arguments.
	ErrInvalidRegistry = errors.New("thing: invalid registry")

	// ErrLockPoisoned is returned by a Handle after a holder panicked while
	// holding the write lock. The wrapped state may be inconsistent.
	ErrLockPoisoned = errors.New("thing: handle poisoned by panic during write")
)
