package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"time"

	"dispacio/internal/geo"
	"dispacio/internal/model"
	"dispacio/internal/solver"
	"dispacio/internal/vrp"
)

var dubai = geo.Point{Lat: 25.2048, Lng: 55.2708}

func randomStops(n int, seed int64) []model.Stop {
	rng := rand.New(rand.NewSource(seed))
	out := make([]model.Stop, n)
	for i := range out {
		lat := dubai.Lat + (rng.Float64()-0.5)*0.2
		lng := dubai.Lng + (rng.Float64()-0.5)*0.2
		out[i] = model.Stop{ID: fmt.Sprintf("s%02d", i), Lat: &lat, Lng: &lng}
	}
	return out
}

func formulate(t *testing.T, stops []model.Stop, vc model.VehicleCapacity) *vrp.Problem {
	t.Helper()
	p, err := vrp.Formulate(stops, vc, dubai, vrp.DefaultOptions())
	if err != nil {
		t.Fatalf("Formulate: %v", err)
	}
	return p
}

func assertPermutation(t *testing.T, routes [][]int, stops int) {
	t.Helper()
	var all []int
	for _, r := range routes {
		all = append(all, r...)
	}
	sort.Ints(all)
	want := make([]int, stops)
	for i := range want {
		want[i] = i + 1
	}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("routes %v do not cover stops 1..%d exactly once", routes, stops)
	}
}

func permutations(xs []int) [][]int {
	if len(xs) <= 1 {
		return [][]int{append([]int(nil), xs...)}
	}
	var out [][]int
	for i := range xs {
		rest := append(append([]int(nil), xs[:i]...), xs[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]int{xs[i]}, p...))
		}
	}
	return out
}

func TestEngineTwoStopScenario(t *testing.T) {
	lat, lng := 25.2148, 55.2808
	stops := []model.Stop{{ID: "a", Lat: &dubai.Lat, Lng: &dubai.Lng}, {ID: "b", Lat: &lat, Lng: &lng}}
	w := 1000.0
	p := formulate(t, stops, model.VehicleCapacity{MaxWeight: &w})

	a := solver.NewAdapter(NewEngine(Config{Seed: 1}), time.Second)
	sol, err := a.Solve(context.Background(), p, 500*time.Millisecond, 1000)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	r, err := vrp.Reconstruct(p, sol.Order, vrp.DefaultSpeedKph)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	want := 2 * geo.Haversine(dubai, geo.Point{Lat: lat, Lng: lng})
	if math.Abs(r.TotalDistanceKm-want) > 0.002 {
		t.Fatalf("total = %v km, want ~%v", r.TotalDistanceKm, want)
	}
}

func TestEngineMatchesBruteForceOnSmallCohort(t *testing.T) {
	p := formulate(t, randomStops(6, 42), model.VehicleCapacity{})
	in := &instance{p: p, vehicles: 1, capacity: p.Capacity}
	optimum := int64(math.MaxInt64)
	for _, perm := range permutations([]int{1, 2, 3, 4, 5, 6}) {
		optimum = min(optimum, in.length(perm))
	}

	routes, err := NewEngine(Config{Seed: 7}).Solve(context.Background(), p, solver.Request{Vehicles: 1, Capacity: p.Capacity, TimeLimit: 2 * time.Second})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	assertPermutation(t, routes, 6)
	if got := in.length(routes[0]); float64(got) > 1.05*float64(optimum) {
		t.Fatalf("route length %d, optimum %d", got, optimum)
	}
}

func TestEngineImprovesOnSeed(t *testing.T) {
	p := formulate(t, randomStops(25, 3), model.VehicleCapacity{})
	var got Metrics
	ctx := WithMetricsSink(context.Background(), func(m Metrics) { got = m })
	routes, err := NewEngine(Config{Seed: 11, IterationsLimit: 300}).Solve(ctx, p, solver.Request{Vehicles: 1, Capacity: p.Capacity, TimeLimit: 3 * time.Second})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	assertPermutation(t, routes, 25)
	if got.Iterations == 0 || got.Iterations > 300 {
		t.Fatalf("iterations = %d", got.Iterations)
	}
	if got.BestCost > got.SeedCost {
		t.Fatalf("best %v worse than seed %v", got.BestCost, got.SeedCost)
	}
	in := &instance{p: p, vehicles: 1, capacity: p.Capacity}
	if float64(in.length(routes[0])) != got.BestCost {
		t.Fatalf("returned route length %d != best cost %v", in.length(routes[0]), got.BestCost)
	}
	if mm := got.Map(); mm["iterations"] != got.Iterations {
		t.Fatalf("metrics map = %v", mm)
	}
}

func TestEngineCapacityInfeasible(t *testing.T) {
	stops := randomStops(3, 5)
	heavy := 50.0
	stops[1].Weight = &heavy
	p := formulate(t, stops, model.VehicleCapacity{})
	_, err := NewEngine(Config{Seed: 1}).Solve(context.Background(), p, solver.Request{Vehicles: 1, Capacity: 10, TimeLimit: time.Second})
	if !errors.Is(err, solver.ErrNoSolution) {
		t.Fatalf("err = %v, want ErrNoSolution", err)
	}

	stops = randomStops(4, 5)
	p = formulate(t, stops, model.VehicleCapacity{})
	_, err = NewEngine(Config{Seed: 1}).Solve(context.Background(), p, solver.Request{Vehicles: 1, Capacity: 3, TimeLimit: time.Second})
	if !errors.Is(err, solver.ErrNoSolution) {
		t.Fatalf("total demand err = %v, want ErrNoSolution", err)
	}
}

func TestEngineTimeWindowInfeasible(t *testing.T) {
	p := formulate(t, randomStops(3, 9), model.VehicleCapacity{})
	p.Windows[2] = vrp.TimeWindow{Start: 0, End: 1}
	_, err := NewEngine(Config{Seed: 1}).Solve(context.Background(), p, solver.Request{Vehicles: 1, Capacity: p.Capacity, TimeLimit: time.Second})
	if !errors.Is(err, solver.ErrNoSolution) {
		t.Fatalf("err = %v, want ErrNoSolution", err)
	}
}

func TestEngineSplitsAcrossVehicles(t *testing.T) {
	stops := randomStops(6, 21)
	for i := range stops {
		w := 5.0
		stops[i].Weight = &w
	}
	p := formulate(t, stops, model.VehicleCapacity{})
	routes, err := NewEngine(Config{Seed: 3}).Solve(context.Background(), p, solver.Request{Vehicles: 3, Capacity: 10, TimeLimit: time.Second})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("got %d routes, want 3", len(routes))
	}
	assertPermutation(t, routes, 6)
	in := &instance{p: p, vehicles: 3, capacity: 10}
	for i, r := range routes {
		if in.load(r) > 10 {
			t.Fatalf("route %d load %d exceeds capacity", i, in.load(r))
		}
	}
}

func TestTwoOptSwapAndRelocate(t *testing.T) {
	if got := twoOptSwap(plan{1, 2, 3, 4, 5}, 1, 3); !reflect.DeepEqual(got, plan{1, 4, 3, 2, 5}) {
		t.Fatalf("twoOptSwap = %v", got)
	}
	if got := relocate(plan{1, 2, 3, 4}, 0, 3); !reflect.DeepEqual(got, plan{2, 3, 4, 1}) {
		t.Fatalf("relocate forward = %v", got)
	}
	if got := relocate(plan{1, 2, 3, 4}, 3, 1); !reflect.DeepEqual(got, plan{1, 4, 2, 3}) {
		t.Fatalf("relocate backward = %v", got)
	}
}

func TestImprove2OptUntanglesCrossing(t *testing.T) {
	// four corners of a square visited in a crossing order
	pts := [][2]float64{{25.20, 55.20}, {25.20, 55.30}, {25.30, 55.30}, {25.30, 55.20}}
	var stops []model.Stop
	for i, c := range pts {
		lat, lng := c[0], c[1]
		stops = append(stops, model.Stop{ID: fmt.Sprint(i), Lat: &lat, Lng: &lng})
	}
	p, err := vrp.Formulate(stops, model.VehicleCapacity{}, geo.Point{Lat: 25.25, Lng: 55.19}, vrp.DefaultOptions())
	if err != nil {
		t.Fatalf("Formulate: %v", err)
	}
	in := &instance{p: p, vehicles: 1, capacity: p.Capacity}
	crossed := plan{1, 3, 2, 4}
	better := improve2Opt(in, crossed)
	if in.length(better) >= in.length(crossed) {
		t.Fatalf("2-opt did not shorten %v (%d) -> %v (%d)", crossed, in.length(crossed), better, in.length(better))
	}
}
