package solver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dispacio/internal/geo"
	"dispacio/internal/model"
	"dispacio/internal/vrp"
)

type fakeEngine struct {
	routes [][]int
	err    error
	delay  time.Duration
	seen   Request
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Solve(_ context.Context, _ *vrp.Problem, req Request) ([][]int, error) {
	f.seen = req
	time.Sleep(f.delay)
	return f.routes, f.err
}

func testProblem(t *testing.T) *vrp.Problem {
	t.Helper()
	lat1, lng1, lat2, lng2 := 25.2048, 55.2708, 25.2148, 55.2808
	stops := []model.Stop{{ID: "a", Lat: &lat1, Lng: &lng1}, {ID: "b", Lat: &lat2, Lng: &lng2}}
	p, err := vrp.Formulate(stops, model.VehicleCapacity{}, geo.Point{Lat: lat1, Lng: lng1}, vrp.DefaultOptions())
	if err != nil {
		t.Fatalf("Formulate: %v", err)
	}
	return p
}

func TestAdapterReturnsFirstRoute(t *testing.T) {
	eng := &fakeEngine{routes: [][]int{{2, 1}}}
	a := NewAdapter(eng, time.Second)
	sol, err := a.Solve(context.Background(), testProblem(t), 200*time.Millisecond, 0)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(sol.Order) != 2 || sol.Order[0] != 2 || sol.Engine != "fake" {
		t.Fatalf("solution = %+v", sol)
	}
	if eng.seen.Vehicles != 1 || eng.seen.Capacity != vrp.DefaultCapacity || eng.seen.TimeLimit != 200*time.Millisecond {
		t.Fatalf("engine request = %+v", eng.seen)
	}
}

func TestAdapterCapacityOverride(t *testing.T) {
	eng := &fakeEngine{routes: [][]int{{1, 2}}}
	if _, err := NewAdapter(eng, time.Second).Solve(context.Background(), testProblem(t), 0, 1000); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if eng.seen.Capacity != 1000 || eng.seen.TimeLimit != DefaultTimeLimit {
		t.Fatalf("engine request = %+v", eng.seen)
	}
}

func TestAdapterValidatesBeforeEngine(t *testing.T) {
	p := testProblem(t)
	p.Demands = p.Demands[:1]
	_, err := NewAdapter(nil, time.Second).Solve(context.Background(), p, time.Second, 0)
	if !errors.Is(err, vrp.ErrMalformedProblem) {
		t.Fatalf("err = %v, want ErrMalformedProblem", err)
	}
	if KindOf(err) != nil {
		t.Fatalf("malformed problem reported as solver kind %v", KindOf(err))
	}
}

func TestAdapterUnavailable(t *testing.T) {
	_, err := NewAdapter(nil, time.Second).Solve(context.Background(), testProblem(t), time.Second, 0)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("nil engine err = %v, want ErrUnavailable", err)
	}
	eng := &fakeEngine{err: ErrUnavailable}
	_, err = NewAdapter(eng, time.Second).Solve(context.Background(), testProblem(t), time.Second, 0)
	var se *Error
	if !errors.As(err, &se) || se.Kind != ErrUnavailable || se.Engine != "fake" {
		t.Fatalf("err = %#v, want *Error{Kind: ErrUnavailable}", err)
	}
	if KindName(err) != "unavailable" {
		t.Fatalf("KindName = %q", KindName(err))
	}
}

func TestAdapterNoSolution(t *testing.T) {
	eng := &fakeEngine{err: ErrNoSolution}
	_, err := NewAdapter(eng, time.Second).Solve(context.Background(), testProblem(t), time.Second, 0)
	if !errors.Is(err, ErrNoSolution) || errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want only ErrNoSolution", err)
	}
}

func TestAdapterHardCeiling(t *testing.T) {
	eng := &fakeEngine{routes: [][]int{{1, 2}}, delay: 2 * time.Second}
	start := time.Now()
	_, err := NewAdapter(eng, 50*time.Millisecond).Solve(context.Background(), testProblem(t), 10*time.Millisecond, 0)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if el := time.Since(start); el > time.Second {
		t.Fatalf("adapter waited %v past its ceiling", el)
	}
}

func TestAdapterGenericEngineError(t *testing.T) {
	eng := &fakeEngine{err: errors.New("segfault in solver")}
	_, err := NewAdapter(eng, time.Second).Solve(context.Background(), testProblem(t), time.Second, 0)
	if err == nil || KindOf(err) != nil {
		t.Fatalf("err = %v, want an unkinded error", err)
	}
}

func TestAdapterEmptyRoutes(t *testing.T) {
	sol, err := NewAdapter(&fakeEngine{}, time.Second).Solve(context.Background(), testProblem(t), time.Second, 0)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(sol.Order) != 0 {
		t.Fatalf("order = %v, want empty", sol.Order)
	}
}

func TestRemoteEngine(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/solve" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(remoteResponse{Routes: [][]int{{2, 1}}})
	}))
	defer srv.Close()

	a := NewAdapter(NewRemoteEngine(srv.URL+"/", srv.Client()), time.Second)
	sol, err := a.Solve(context.Background(), testProblem(t), 300*time.Millisecond, 0)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sol.Engine != "remote" || len(sol.Order) != 2 || sol.Order[0] != 2 {
		t.Fatalf("solution = %+v", sol)
	}
	if got.Vehicles != 1 || got.TimeLimitMs != 300 || got.Problem == nil || got.Problem.Size() != 3 {
		t.Fatalf("request = %+v", got)
	}
}

func TestRemoteEngineErrorKinds(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusServiceUnavailable, "down", ErrUnavailable},
		{http.StatusUnprocessableEntity, "over capacity", ErrNoSolution},
		{http.StatusGatewayTimeout, "slow", ErrTimeout},
		{http.StatusOK, `{"status":"infeasible"}`, ErrNoSolution},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
			_, _ = w.Write([]byte(c.body))
		}))
		_, err := NewRemoteEngine(srv.URL, srv.Client()).Solve(context.Background(), testProblem(t), Request{Vehicles: 1})
		srv.Close()
		if !errors.Is(err, c.want) {
			t.Fatalf("status %d: err = %v, want %v", c.status, err, c.want)
		}
	}
}

func TestRemoteEngineUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	eng := NewRemoteEngine(url, nil)
	if _, err := eng.Solve(context.Background(), testProblem(t), Request{Vehicles: 1}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if err := eng.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Ping err = %v, want ErrUnavailable", err)
	}
	if _, err := NewRemoteEngine("", nil).Solve(context.Background(), testProblem(t), Request{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("empty url err = %v", err)
	}
}
