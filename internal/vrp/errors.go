package vrp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCohort is returned when there are no stops to optimize.
	ErrEmptyCohort = errors.New("nothing to optimize")
	// ErrMissingCoordinates is wrapped by *MissingCoordinatesError.
	ErrMissingCoordinates = errors.New("stops missing coordinates")
	// ErrMalformedProblem means the index-aligned arrays disagree in shape.
	ErrMalformedProblem = errors.New("malformed vrp problem")
	// ErrNoRoute is returned when a solver produced no visiting order.
	ErrNoRoute = errors.New("no route produced")
	// ErrInvalidRoute means a solver order does not visit every stop exactly once.
	ErrInvalidRoute = errors.New("invalid route")
)

// MissingCoordinatesError lists the stops that cannot be placed on the map.
type MissingCoordinatesError struct {
	StopIDs []string
}

func (e *MissingCoordinatesError) Error() string {
	return fmt.Sprintf("%d stops missing coordinates: %s", len(e.StopIDs), strings.Join(e.StopIDs, ", "))
}

func (e *MissingCoordinatesError) Unwrap() error { return ErrMissingCoordinates }
