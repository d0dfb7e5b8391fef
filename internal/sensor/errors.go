package sensor

import (
	"errors"
	"fmt"
)

// Domain errors for reading acquisition.
var (
	// ErrProducer is the root of every acquisition failure.
	ErrProducer = errors.New("sensor: producer failure")

	// ErrNoReading is returned before the first reading has arrived.
	ErrNoReading = fmt.Errorf("%w: no reading received yet", ErrProducer)

	// ErrStaleReading is returned when the latest reading exceeds the maximum age.
	ErrStaleReading = fmt.Errorf("%w: reading is stale", ErrProducer)

	// ErrUnknownField is returned when a reading field name is not recognised.
	ErrUnknownField = errors.New("sensor: unknown reading field")
)
