// Package solver runs a pluggable VRP engine under a hard wall-clock limit
// and reports engine failures as distinct error kinds.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispacio/internal/vrp"
)

const (
	DefaultTimeLimit   = 5 * time.Second
	DefaultHardCeiling = 10 * time.Second
)

// Request carries the per-run engine parameters.
type Request struct {
	Vehicles  int
	Capacity  int64
	TimeLimit time.Duration
}

// Engine solves a problem and returns one visiting order per vehicle, each
// a list of location indices without the depot. Engines should honour ctx.
type Engine interface {
	Name() string
	Solve(ctx context.Context, p *vrp.Problem, req Request) ([][]int, error)
}

// Solution is the first vehicle's visiting order.
type Solution struct {
	Engine  string
	Order   []int
	Elapsed time.Duration
}

type Adapter struct {
	engine      Engine
	hardCeiling time.Duration
}

// NewAdapter wraps engine. A nil engine makes every Solve report
// ErrUnavailable once the problem has been validated.
func NewAdapter(engine Engine, hardCeiling time.Duration) *Adapter {
	if hardCeiling <= 0 {
		hardCeiling = DefaultHardCeiling
	}
	return &Adapter{engine: engine, hardCeiling: hardCeiling}
}

func (a *Adapter) EngineName() string {
	if a == nil || a.engine == nil {
		return "none"
	}
	return a.engine.Name()
}

// Solve validates p and runs the engine for one vehicle. The engine is given
// timeLimit as its search budget; the call itself returns no later than
// max(timeLimit, hard ceiling) with ErrTimeout, cancelling the engine.
// A capacity of zero or less means the problem's own capacity.
func (a *Adapter) Solve(ctx context.Context, p *vrp.Problem, timeLimit time.Duration, capacity int64) (Solution, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, err
	}
	name := a.EngineName()
	if a == nil || a.engine == nil {
		return Solution{}, &Error{Engine: name, Kind: ErrUnavailable}
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	if capacity <= 0 {
		capacity = p.Capacity
	}
	wall := max(timeLimit, a.hardCeiling)

	ctx, cancel := context.WithTimeout(ctx, wall)
	defer cancel()

	type result struct {
		routes [][]int
		err    error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		routes, err := a.engine.Solve(ctx, p, Request{Vehicles: 1, Capacity: capacity, TimeLimit: timeLimit})
		done <- result{routes, err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Solution{}, &Error{Engine: name, Kind: ErrTimeout, Err: fmt.Errorf("no answer within %v", wall)}
		}
		return Solution{}, ctx.Err()
	case r := <-done:
		sol := Solution{Engine: name, Elapsed: time.Since(start)}
		if r.err != nil {
			return sol, classify(name, r.err)
		}
		if len(r.routes) > 0 {
			sol.Order = r.routes[0]
		}
		return sol, nil
	}
}

func classify(engine string, err error) error {
	if kind := KindOf(err); kind != nil {
		var se *Error
		if errors.As(err, &se) {
			return se
		}
		return &Error{Engine: engine, Kind: kind, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Engine: engine, Kind: ErrTimeout, Err: err}
	}
	return fmt.Errorf("solver %s: %w", engine, err)
}
