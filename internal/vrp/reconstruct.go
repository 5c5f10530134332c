package vrp

import (
	"fmt"

	"dispacio/internal/units"
)

type RouteStop struct {
	StopID             string
	Rank               int
	DistanceFromPrevKm float64
}

// Route is a solved visiting order. TotalDistanceKm includes the closing
// leg back to the depot; TotalDurationSeconds is an estimate derived from
// that distance alone.
type Route struct {
	Stops                []RouteStop
	TotalDistanceKm      float64
	TotalDurationSeconds int64
}

// Reconstruct maps a solver order (location indices, depot excluded) back
// onto the problem's stops. Any order that does not visit every stop exactly
// once is rejected.
func Reconstruct(p *Problem, order []int, speedKph float64) (Route, error) {
	if len(order) == 0 {
		return Route{}, ErrNoRoute
	}
	if p == nil || len(order) != p.Stops() {
		got := 0
		if p != nil {
			got = p.Stops()
		}
		return Route{}, fmt.Errorf("%w: %d nodes for %d stops", ErrInvalidRoute, len(order), got)
	}
	if speedKph <= 0 {
		speedKph = DefaultSpeedKph
	}
	seen := make([]bool, p.Size())
	out := Route{Stops: make([]RouteStop, 0, len(order))}
	var totalM int64
	prev := 0
	for i, node := range order {
		if node <= 0 || node >= p.Size() {
			return Route{}, fmt.Errorf("%w: node %d out of range", ErrInvalidRoute, node)
		}
		if seen[node] {
			return Route{}, fmt.Errorf("%w: node %d visited twice", ErrInvalidRoute, node)
		}
		seen[node] = true
		leg := p.Costs[prev][node]
		totalM += leg
		out.Stops = append(out.Stops, RouteStop{
			StopID:             p.StopIDs[node],
			Rank:               i + 1,
			DistanceFromPrevKm: units.Km(leg),
		})
		prev = node
	}
	totalM += p.Costs[prev][0]
	out.TotalDistanceKm = units.Km(totalM)
	out.TotalDurationSeconds = units.EstimateSeconds(out.TotalDistanceKm, speedKph)
	return out, nil
}
