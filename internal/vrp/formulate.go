package vrp

import (
	"dispacio/internal/geo"
	"dispacio/internal/model"
	"dispacio/internal/units"
)

const (
	DefaultSpeedKph   = 40.0
	DefaultServiceSec = 300
	// DefaultCapacity applies when a vehicle declares neither weight nor volume.
	DefaultCapacity = 100000
)

type Options struct {
	SpeedKph        float64 // assumed average driving speed
	ServiceSec      int64   // dwell time added on arrival at every stop
	DefaultCapacity int64
	Window          TimeWindow
}

func DefaultOptions() Options {
	return Options{
		SpeedKph:        DefaultSpeedKph,
		ServiceSec:      DefaultServiceSec,
		DefaultCapacity: DefaultCapacity,
		Window:          DayWindow,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SpeedKph <= 0 {
		o.SpeedKph = d.SpeedKph
	}
	if o.ServiceSec < 0 {
		o.ServiceSec = 0
	}
	if o.DefaultCapacity <= 0 {
		o.DefaultCapacity = d.DefaultCapacity
	}
	if o.Window == (TimeWindow{}) {
		o.Window = d.Window
	}
	return o
}

// Demand is the load a stop puts on the vehicle: its weight, else its
// volume, else one unit. Zero or negative measures count as absent.
func Demand(s model.Stop) int64 {
	raw := 1.0
	switch {
	case s.Weight != nil && *s.Weight > 0:
		raw = *s.Weight
	case s.Volume != nil && *s.Volume > 0:
		raw = *s.Volume
	}
	if d := units.Round(raw); d > 0 {
		return d
	}
	return 1
}

// Capacity resolves a vehicle's capacity in demand units, preferring weight
// over volume and falling back when neither is declared.
func Capacity(v model.VehicleCapacity, fallback int64) int64 {
	raw := 0.0
	switch {
	case v.MaxWeight != nil && *v.MaxWeight > 0:
		raw = *v.MaxWeight
	case v.MaxVolume != nil && *v.MaxVolume > 0:
		raw = *v.MaxVolume
	default:
		return fallback
	}
	if c := units.Round(raw); c > 0 {
		return c
	}
	return 1
}

// ResolveDepot picks the route origin: the explicit depot when given, else
// the first stop with coordinates, else fallback.
func ResolveDepot(explicit *geo.Point, stops []model.Stop, fallback geo.Point) geo.Point {
	if explicit != nil && explicit.Valid() {
		return *explicit
	}
	for _, s := range stops {
		if p, ok := s.Point(); ok {
			return p
		}
	}
	return fallback
}

// Formulate builds the problem for one vehicle starting and ending at depot.
// It rejects the whole cohort before any matrix work when a stop lacks
// coordinates.
func Formulate(stops []model.Stop, vehicle model.VehicleCapacity, depot geo.Point, opts Options) (*Problem, error) {
	if len(stops) == 0 {
		return nil, ErrEmptyCohort
	}
	var missing []string
	for _, s := range stops {
		if _, ok := s.Point(); !ok {
			missing = append(missing, s.ID)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingCoordinatesError{StopIDs: missing}
	}
	opts = opts.withDefaults()

	n := len(stops) + 1
	p := &Problem{
		Locations: make([]geo.Point, n),
		StopIDs:   make([]string, n),
		Demands:   make([]int64, n),
		Windows:   make([]TimeWindow, n),
		Capacity:  Capacity(vehicle, opts.DefaultCapacity),
	}
	p.Locations[0] = depot
	p.Windows[0] = opts.Window
	for i, s := range stops {
		pt, _ := s.Point()
		p.Locations[i+1] = pt
		p.StopIDs[i+1] = s.ID
		p.Demands[i+1] = Demand(s)
		p.Windows[i+1] = opts.Window
	}

	costs := geo.BuildMatrix(p.Locations)
	p.Costs = costs
	p.Durations = make([][]int64, n)
	for i := 0; i < n; i++ {
		row := make([]int64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			row[j] = units.TravelSeconds(costs[i][j], opts.SpeedKph)
			if j != 0 {
				row[j] += opts.ServiceSec
			}
		}
		p.Durations[i] = row
	}
	return p, nil
}
