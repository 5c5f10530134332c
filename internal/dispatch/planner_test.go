package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dispacio/internal/events"
	"dispacio/internal/geo"
	"dispacio/internal/model"
	"dispacio/internal/opt"
	"dispacio/internal/solver"
	"dispacio/internal/store"
	"dispacio/internal/vrp"
	"dispacio/internal/zone"
)

func stop(id string, lat, lng float64) model.Stop {
	return model.Stop{ID: id, Lat: &lat, Lng: &lng}
}

func grid(prefix string, lat0, lng0 float64) []model.Stop {
	var out []model.Stop
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out = append(out, stop(fmt.Sprintf("%s%d", prefix, i*3+j), lat0+float64(i)*0.0002, lng0+float64(j)*0.0002))
		}
	}
	return out
}

type fakeEngine struct{ err error }

func (f fakeEngine) Name() string { return "fake" }

func (f fakeEngine) Solve(ctx context.Context, p *vrp.Problem, req solver.Request) ([][]int, error) {
	return nil, f.err
}

func newPlanner(t *testing.T, engine solver.Engine) (*Planner, *store.Memory, *events.Broker) {
	t.Helper()
	st := store.NewMemory()
	br := events.NewBroker()
	p := New(solver.NewAdapter(engine, 5*time.Second), st, br, Options{
		Zone:          zone.DefaultOptions(),
		VRP:           vrp.DefaultOptions(),
		FallbackDepot: geo.Point{Lat: 25.2048, Lng: 55.2708},
		TimeLimit:     500 * time.Millisecond,
		MaxParallel:   2,
	})
	return p, st, br
}

func TestOptimizeStoresRouteAndMetrics(t *testing.T) {
	p, st, br := newPlanner(t, opt.NewEngine(opt.Config{Seed: 1}))
	ctx := context.Background()
	sub := br.Subscribe(events.Topic("t1"))
	defer br.Unsubscribe(events.Topic("t1"), sub)

	stops := grid("s", 25.2000, 55.2700)
	rt, err := p.Optimize(ctx, "t1", model.OptimizeRequest{ZoneID: "z1", DriverID: "d1", Stops: stops})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(rt.Stops) != len(stops) || rt.Engine != "alns" || rt.ID == "" {
		t.Fatalf("unexpected route %+v", rt)
	}
	seen := map[string]bool{}
	for i, s := range rt.Stops {
		if s.Rank != i+1 {
			t.Fatalf("rank %d at position %d", s.Rank, i)
		}
		seen[s.ID] = true
	}
	if len(seen) != len(stops) {
		t.Fatalf("route does not visit every stop once")
	}
	if rt.TotalDistanceKm <= 0 || rt.TotalDurationSeconds <= 0 {
		t.Fatalf("totals = %v km / %d s", rt.TotalDistanceKm, rt.TotalDurationSeconds)
	}
	if _, err := st.GetRoute(ctx, "t1", rt.ID); err != nil {
		t.Fatalf("route not stored: %v", err)
	}
	if ms, _ := st.ListPlanMetrics(ctx, "t1", "", "alns"); len(ms) != 1 {
		t.Fatalf("plan metrics = %d, want 1", len(ms))
	}
	select {
	case evt := <-sub:
		if evt.Type != events.TypeRouteOptimized || evt.Data["routeId"] != rt.ID {
			t.Fatalf("unexpected event %+v", evt)
		}
	default:
		t.Fatalf("no event published")
	}

	// a rerun for the same zone and driver replaces the route
	again, err := p.Optimize(ctx, "t1", model.OptimizeRequest{ZoneID: "z1", DriverID: "d1", Stops: stops})
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	routes, _, _ := st.ListRoutes(ctx, "t1", "", 10)
	if len(routes) != 1 || routes[0].ID != again.ID {
		t.Fatalf("want only the latest route, got %d", len(routes))
	}
}

func TestOptimizeMissingCoordinatesStoresNothing(t *testing.T) {
	p, st, br := newPlanner(t, opt.NewEngine(opt.Config{Seed: 1}))
	ctx := context.Background()
	sub := br.Subscribe(events.Topic("t1"))
	defer br.Unsubscribe(events.Topic("t1"), sub)

	_, err := p.Optimize(ctx, "t1", model.OptimizeRequest{Stops: []model.Stop{stop("a", 25.2, 55.27), {ID: "b"}}})
	var mc *vrp.MissingCoordinatesError
	if !errors.As(err, &mc) || len(mc.StopIDs) != 1 || mc.StopIDs[0] != "b" {
		t.Fatalf("want missing coordinates for b, got %v", err)
	}
	if Outcome(err) != "invalid" {
		t.Fatalf("Outcome = %s", Outcome(err))
	}
	if routes, _, _ := st.ListRoutes(ctx, "t1", "", 10); len(routes) != 0 {
		t.Fatalf("failed run stored a route")
	}
	evt := <-sub
	if evt.Type != events.TypeRouteFailed || evt.Data["kind"] != "invalid" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestOptimizeEngineFailures(t *testing.T) {
	cases := []struct {
		name   string
		engine solver.Engine
		kind   error
		label  string
	}{
		{"no engine", nil, solver.ErrUnavailable, "unavailable"},
		{"infeasible", fakeEngine{err: solver.ErrNoSolution}, solver.ErrNoSolution, "infeasible"},
		{"down", fakeEngine{err: fmt.Errorf("dial: %w", solver.ErrUnavailable)}, solver.ErrUnavailable, "unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, st, _ := newPlanner(t, tc.engine)
			_, err := p.Optimize(context.Background(), "t1", model.OptimizeRequest{Stops: grid("s", 25.2, 55.27)})
			if !errors.Is(err, tc.kind) || Outcome(err) != tc.label {
				t.Fatalf("err = %v (outcome %s), want %v", err, Outcome(err), tc.kind)
			}
			if routes, _, _ := st.ListRoutes(context.Background(), "t1", "", 10); len(routes) != 0 {
				t.Fatalf("failed run stored a route")
			}
		})
	}
}

func TestOptimizeEmptyCohort(t *testing.T) {
	p, _, _ := newPlanner(t, opt.NewEngine(opt.Config{}))
	if _, err := p.Optimize(context.Background(), "t1", model.OptimizeRequest{}); !errors.Is(err, vrp.ErrEmptyCohort) {
		t.Fatalf("want ErrEmptyCohort, got %v", err)
	}
}

func TestClusterPersistsBatch(t *testing.T) {
	p, st, _ := newPlanner(t, nil)
	ctx := context.Background()
	stops := append(grid("a", 25.2000, 55.2700), grid("b", 25.0800, 55.1400)...)
	stops = append(stops, model.Stop{ID: "x"})
	zones, err := p.Cluster(ctx, "t1", model.ClusterRequest{Stops: stops})
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(zones) != 3 {
		t.Fatalf("got %d zones, want 3", len(zones))
	}
	if zones[0].Label != "Zone 1" || zones[2].Label != zone.UnassignedLabel || zones[2].Center != nil {
		t.Fatalf("unexpected labels %s %s %s", zones[0].Label, zones[1].Label, zones[2].Label)
	}
	if zones[0].MemberStopIDs[0][0] != 'b' {
		t.Fatalf("western zone should come first, got %v", zones[0].MemberStopIDs)
	}
	stored, err := st.ListZones(ctx, "t1", "")
	if err != nil || len(stored) != 3 || stored[0].BatchID != zones[0].BatchID {
		t.Fatalf("stored zones = %+v, %v", stored, err)
	}

	empty, err := p.Cluster(ctx, "t2", model.ClusterRequest{})
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty cohort: %v %v", empty, err)
	}
}

func TestClusterRequestOverrides(t *testing.T) {
	p, _, _ := newPlanner(t, nil)
	minPts := 10
	zones, err := p.Cluster(context.Background(), "t1", model.ClusterRequest{Stops: grid("a", 25.2, 55.27), MinPointsPerCluster: &minPts})
	if err != nil {
		t.Fatal(err)
	}
	// nine stops can never reach ten members, so each stays alone
	if len(zones) != 9 {
		t.Fatalf("got %d zones, want 9", len(zones))
	}
}

func TestOptimizeZones(t *testing.T) {
	p, st, _ := newPlanner(t, opt.NewEngine(opt.Config{Seed: 3}))
	ctx := context.Background()
	stops := append(grid("a", 25.2000, 55.2700), grid("b", 25.0800, 55.1400)...)
	stops = append(stops, model.Stop{ID: "x"})
	results, err := p.OptimizeZones(ctx, "t1", model.ZoneOptimizeRequest{ClusterRequest: model.ClusterRequest{Stops: stops}})
	if err != nil {
		t.Fatalf("OptimizeZones: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	for _, r := range results[:2] {
		if r.Route == nil || r.Error != "" || len(r.Route.Stops) != 9 {
			t.Fatalf("zone %s: route=%v err=%s", r.Zone.Label, r.Route, r.Error)
		}
	}
	if results[2].Route != nil || results[2].Kind != "unassigned" {
		t.Fatalf("unassigned zone must not be optimized: %+v", results[2])
	}
	if routes, _, _ := st.ListRoutes(ctx, "t1", "", 10); len(routes) != 2 {
		t.Fatalf("stored %d routes, want 2", len(routes))
	}
}

func TestOptimizeZonesReportsFailuresPerZone(t *testing.T) {
	p, _, _ := newPlanner(t, fakeEngine{err: solver.ErrNoSolution})
	stops := append(grid("a", 25.2000, 55.2700), grid("b", 25.0800, 55.1400)...)
	results, err := p.OptimizeZones(context.Background(), "t1", model.ZoneOptimizeRequest{ClusterRequest: model.ClusterRequest{Stops: stops}})
	if err != nil {
		t.Fatalf("OptimizeZones: %v", err)
	}
	for _, r := range results {
		if r.Route != nil || r.Kind != "infeasible" {
			t.Fatalf("zone %s: %+v", r.Zone.Label, r)
		}
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":        nil,
		"timeout":   &solver.Error{Engine: "x", Kind: solver.ErrTimeout},
		"invalid":   vrp.ErrMalformedProblem,
		"bad_route": fmt.Errorf("%w: dup", vrp.ErrInvalidRoute),
		"canceled":  context.Canceled,
		"error":     errors.New("boom"),
	}
	for want, err := range cases {
		if got := Outcome(err); got != want {
			t.Fatalf("Outcome(%v) = %s, want %s", err, got, want)
		}
	}
}
