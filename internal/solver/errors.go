package solver

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by Adapter.Solve that originates in an
// engine matches exactly one of these with errors.Is.
var (
	ErrUnavailable = errors.New("solver unavailable")
	ErrNoSolution  = errors.New("no feasible solution")
	ErrTimeout     = errors.New("solver timed out")
)

// Error records which engine failed and how.
type Error struct {
	Engine string
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil || e.Err == e.Kind {
		return fmt.Sprintf("solver %s: %v", e.Engine, e.Kind)
	}
	return fmt.Sprintf("solver %s: %v: %v", e.Engine, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the error kind of err, or nil when err is not a solver failure.
func KindOf(err error) error {
	for _, k := range []error{ErrUnavailable, ErrNoSolution, ErrTimeout} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName is a short label for metrics and API payloads.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrUnavailable:
		return "unavailable"
	case ErrNoSolution:
		return "infeasible"
	case ErrTimeout:
		return "timeout"
	}
	return ""
}
