// Package vrp turns a cohort of stops into an integer vehicle routing
// problem and maps solver output back into a ranked route.
package vrp

import (
	"fmt"

	"dispacio/internal/geo"
)

// DayWindow is the default time window: the whole day in seconds.
var DayWindow = TimeWindow{Start: 0, End: 86400}

// TimeWindow bounds the arrival time at a location, in seconds from the
// start of the route.
type TimeWindow struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Problem is a single-depot capacitated VRP. Every per-location slice is
// indexed by location; index 0 is the depot and index i>0 is StopIDs[i].
type Problem struct {
	Locations []geo.Point   `json:"locations"`
	StopIDs   []string      `json:"stopIds"`
	Demands   []int64       `json:"demands"`
	Windows   []TimeWindow  `json:"timeWindows"`
	Costs     [][]int64     `json:"costs"`     // metres
	Durations [][]int64     `json:"durations"` // seconds, service time included on arrival
	Capacity  int64         `json:"capacity"`
}

// Size is the number of locations including the depot.
func (p *Problem) Size() int { return len(p.Locations) }

// Stops is the number of non-depot locations.
func (p *Problem) Stops() int {
	if len(p.Locations) == 0 {
		return 0
	}
	return len(p.Locations) - 1
}

// Validate checks that all index-aligned arrays agree. A failure here is a
// programming error upstream, never bad user input.
func (p *Problem) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil problem", ErrMalformedProblem)
	}
	n := len(p.Locations)
	if n < 2 {
		return fmt.Errorf("%w: %d locations, need a depot and at least one stop", ErrMalformedProblem, n)
	}
	if len(p.StopIDs) != n || len(p.Demands) != n || len(p.Windows) != n {
		return fmt.Errorf("%w: locations=%d stopIds=%d demands=%d windows=%d",
			ErrMalformedProblem, n, len(p.StopIDs), len(p.Demands), len(p.Windows))
	}
	if err := checkSquare("costs", p.Costs, n); err != nil {
		return err
	}
	if err := checkSquare("durations", p.Durations, n); err != nil {
		return err
	}
	if p.Demands[0] != 0 {
		return fmt.Errorf("%w: depot demand %d", ErrMalformedProblem, p.Demands[0])
	}
	for i, w := range p.Windows {
		if w.End < w.Start {
			return fmt.Errorf("%w: window %d ends before it starts", ErrMalformedProblem, i)
		}
	}
	if p.Capacity <= 0 {
		return fmt.Errorf("%w: capacity %d", ErrMalformedProblem, p.Capacity)
	}
	return nil
}

func checkSquare(name string, m [][]int64, n int) error {
	if len(m) != n {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrMalformedProblem, name, len(m), n)
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("%w: %s row %d has %d columns, want %d", ErrMalformedProblem, name, i, len(row), n)
		}
	}
	return nil
}
