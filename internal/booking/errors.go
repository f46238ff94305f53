package booking

import (
	"errors"
	"fmt"
)

// Error taxonomy of the reservation core. Every failure returned by
// Manager wraps exactly one of these; the HTTP layer maps them to
// status codes. None of them is fatal.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidTemporal = errors.New("reservation must be in the future")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state transition")
	ErrNoAvailability  = errors.New("no tables available for the selected date and time")
)

// errModifiedConcurrently reports a write that lost a race with another
// change to the same reservation.
var errModifiedConcurrently = fmt.Errorf("%w: reservation was modified concurrently", ErrInvalidState)
