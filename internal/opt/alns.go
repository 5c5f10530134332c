// Package opt is the in-process routing engine: an adaptive large
// neighbourhood search over a problem's integer cost matrix.
package opt

import (
	"context"
	"fmt"

	"dispacio/internal/solver"
	"dispacio/internal/vrp"
)

// Config tunes the search. Zero values pick defaults.
type Config struct {
	Seed                    int64
	IterationsLimit         int
	StallLimit              int     // iterations without a new best before stopping
	InitialTemp             float64 // in metres; default scales with the seed route
	Cooling                 float64
	InitialRemovalWeights   []float64 // [random, related]
	InitialInsertionWeights []float64 // [greedy, regret2]
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine { return &Engine{cfg: cfg} }

func (e *Engine) Name() string { return "alns" }

// Solve implements solver.Engine. It fails with solver.ErrNoSolution when a
// stop cannot be served within capacity and time windows.
func (e *Engine) Solve(ctx context.Context, p *vrp.Problem, req solver.Request) ([][]int, error) {
	in := &instance{p: p, vehicles: req.Vehicles, capacity: req.Capacity}
	if in.vehicles < 1 {
		in.vehicles = 1
	}
	if in.capacity <= 0 {
		in.capacity = p.Capacity
	}
	var total int64
	for i := 1; i < p.Size(); i++ {
		if p.Demands[i] > in.capacity {
			return nil, fmt.Errorf("%w: stop %s demand %d exceeds capacity %d", solver.ErrNoSolution, p.StopIDs[i], p.Demands[i], in.capacity)
		}
		total += p.Demands[i]
	}
	if total > in.capacity*int64(in.vehicles) {
		return nil, fmt.Errorf("%w: total demand %d exceeds fleet capacity %d", solver.ErrNoSolution, total, in.capacity*int64(in.vehicles))
	}

	budget := req.TimeLimit
	if budget <= 0 {
		budget = solver.DefaultTimeLimit
	}
	best, m := search(ctx, in, e.cfg, budget)
	emit(ctx, m)
	if err := ctx.Err(); err != nil && len(best.unassigned) > 0 {
		return nil, err
	}
	if len(best.unassigned) > 0 {
		return nil, fmt.Errorf("%w: %d stops cannot be scheduled", solver.ErrNoSolution, len(best.unassigned))
	}
	routes := make([][]int, len(best.plans))
	for i, pl := range best.plans {
		routes[i] = append([]int(nil), pl...)
	}
	return routes, nil
}

var _ solver.Engine = (*Engine)(nil)

