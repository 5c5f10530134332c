// Package dispatch runs the planning pipeline: zoning a cohort of stops,
// optimizing a route per zone and recording the outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"dispacio/internal/events"
	"dispacio/internal/geo"
	"dispacio/internal/metrics"
	"dispacio/internal/model"
	"dispacio/internal/obs"
	"dispacio/internal/opt"
	"dispacio/internal/solver"
	"dispacio/internal/store"
	"dispacio/internal/vrp"
	"dispacio/internal/zone"
)

type Options struct {
	Zone          zone.Options
	VRP           vrp.Options
	FallbackDepot geo.Point
	TimeLimit     time.Duration // default engine budget; requests may override
	MaxParallel   int           // zones optimized at once by OptimizeZones
}

type Planner struct {
	adapter *solver.Adapter
	store   store.Store
	broker  events.EventBroker
	opts    Options
	now     func() time.Time
}

func New(adapter *solver.Adapter, st store.Store, broker events.EventBroker, opts Options) *Planner {
	if opts.VRP.SpeedKph <= 0 {
		opts.VRP.SpeedKph = vrp.DefaultSpeedKph
	}
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = solver.DefaultTimeLimit
	}
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	if broker == nil {
		broker = events.NewBroker()
	}
	return &Planner{adapter: adapter, store: st, broker: broker, opts: opts, now: time.Now}
}

func (p *Planner) EngineName() string { return p.adapter.EngineName() }

// Cluster zones the request's stops, persists the zones as one batch and
// announces it. An empty cohort yields no zones and nothing is stored.
func (p *Planner) Cluster(ctx context.Context, tenant string, req model.ClusterRequest) (_ []model.Zone, err error) {
	defer obs.Time(ctx, "cluster")(&err)
	_, out, err := p.cluster(ctx, tenant, req)
	return out, err
}

func (p *Planner) cluster(ctx context.Context, tenant string, req model.ClusterRequest) ([]zone.Zone, []model.Zone, error) {
	opts := p.opts.Zone
	if req.MergeRadiusPx != nil && *req.MergeRadiusPx > 0 {
		opts.Radius = *req.MergeRadiusPx
	}
	if req.MinPointsPerCluster != nil && *req.MinPointsPerCluster > 0 {
		opts.MinPoints = *req.MinPointsPerCluster
	}
	zones := zone.New(opts).Cluster(req.Stops)
	if len(zones) == 0 {
		return nil, []model.Zone{}, nil
	}
	out := make([]model.Zone, len(zones))
	for i, z := range zones {
		out[i] = model.Zone{Label: z.Label, Center: z.Center, MemberStopIDs: z.MemberIDs(), Count: z.Count(), Zoom: z.Zoom}
	}
	batch, err := p.store.SaveZones(ctx, tenant, out)
	if err != nil {
		return nil, nil, fmt.Errorf("save zones: %w", err)
	}
	now := p.now().UTC()
	for i := range out {
		out[i].BatchID = batch
		out[i].CreatedAt = now
	}
	metrics.ClusterZones.Observe(float64(len(out)))
	p.broker.Publish(events.Topic(tenant), events.Event{Type: events.TypeZonesClustered, Data: map[string]any{
		"batchId": batch, "zones": len(out), "stops": len(req.Stops),
	}})
	obs.Logf(ctx, "tenant=%s batch=%s zones=%d stops=%d", tenant, batch, len(out), len(req.Stops))
	return zones, out, nil
}

// Optimize formulates, solves and reconstructs a single route. A successful
// run replaces the stored route of the same zone and driver; a failed run
// stores nothing.
func (p *Planner) Optimize(ctx context.Context, tenant string, req model.OptimizeRequest) (_ model.Route, err error) {
	defer obs.Time(ctx, "optimize")(&err)
	engine := p.adapter.EngineName()
	defer func() {
		metrics.OptimizeRuns.WithLabelValues(engine, Outcome(err)).Inc()
		if err != nil {
			p.broker.Publish(events.Topic(tenant), events.Event{Type: events.TypeRouteFailed, Data: map[string]any{
				"zoneId": req.ZoneID, "driverId": req.DriverID, "kind": Outcome(err), "error": err.Error(),
			}})
		}
	}()

	depot := vrp.ResolveDepot(req.Depot, req.Stops, p.opts.FallbackDepot)
	prob, err := vrp.Formulate(req.Stops, req.Vehicle, depot, p.opts.VRP)
	if err != nil {
		return model.Route{}, err
	}

	limit := p.opts.TimeLimit
	if req.TimeLimitMs > 0 {
		limit = time.Duration(req.TimeLimitMs) * time.Millisecond
	}
	runMx := make(chan opt.Metrics, 1)
	sctx := opt.WithMetricsSink(ctx, func(m opt.Metrics) {
		select {
		case runMx <- m:
		default:
		}
	})
	start := time.Now()
	sol, err := p.adapter.Solve(sctx, prob, limit, 0)
	metrics.SolverDuration.WithLabelValues(engine, Outcome(err)).Observe(time.Since(start).Seconds())
	select {
	case m := <-runMx:
		p.savePlanMetrics(ctx, tenant, engine, m)
	default:
	}
	if err != nil {
		return model.Route{}, err
	}

	vr, err := vrp.Reconstruct(prob, sol.Order, p.opts.VRP.SpeedKph)
	if err != nil {
		return model.Route{}, err
	}
	rt := model.Route{
		ZoneID:               req.ZoneID,
		DriverID:             req.DriverID,
		Engine:               sol.Engine,
		TotalDistanceKm:      vr.TotalDistanceKm,
		TotalDurationSeconds: vr.TotalDurationSeconds,
		Stops:                make([]model.RouteStop, len(vr.Stops)),
	}
	for i, s := range vr.Stops {
		rt.Stops[i] = model.RouteStop{ID: s.StopID, Rank: s.Rank, DistanceFromPrevKm: s.DistanceFromPrevKm}
	}
	rt, err = p.store.SaveRoute(ctx, tenant, rt)
	if err != nil {
		return model.Route{}, fmt.Errorf("save route: %w", err)
	}
	metrics.RouteDistanceKm.Observe(rt.TotalDistanceKm)
	p.broker.Publish(events.Topic(tenant), events.Event{Type: events.TypeRouteOptimized, Data: map[string]any{
		"routeId": rt.ID, "zoneId": rt.ZoneID, "driverId": rt.DriverID,
		"totalDistanceKm": rt.TotalDistanceKm, "stops": len(rt.Stops),
	}})
	obs.Logf(ctx, "tenant=%s route=%s engine=%s stops=%d km=%.3f", tenant, rt.ID, rt.Engine, len(rt.Stops), rt.TotalDistanceKm)
	return rt, nil
}

func (p *Planner) savePlanMetrics(ctx context.Context, tenant, engine string, m opt.Metrics) {
	runDate := p.now().UTC().Format(time.DateOnly)
	if err := p.store.SavePlanMetrics(ctx, tenant, runDate, engine, m.Map()); err != nil {
		obs.Logf(ctx, "tenant=%s op=save_plan_metrics err=%v", tenant, err)
	}
}

// OptimizeZones clusters the stops and optimizes every spatial zone
// concurrently. Per-zone failures are reported in the results; the
// unassigned zone is listed but never optimized. Results follow zone order.
func (p *Planner) OptimizeZones(ctx context.Context, tenant string, req model.ZoneOptimizeRequest) (_ []model.ZoneResult, err error) {
	defer obs.Time(ctx, "optimize_zones")(&err)
	zones, out, err := p.cluster(ctx, tenant, req.ClusterRequest)
	if err != nil {
		return nil, err
	}
	results := make([]model.ZoneResult, len(zones))
	var g errgroup.Group
	g.SetLimit(p.opts.MaxParallel)
	for i, z := range zones {
		results[i].Zone = out[i]
		if z.Unassigned() {
			results[i].Error = "not optimized: " + vrp.ErrMissingCoordinates.Error()
			results[i].Kind = "unassigned"
			continue
		}
		g.Go(func() error {
			rt, err := p.Optimize(ctx, tenant, model.OptimizeRequest{
				ZoneID:      out[i].BatchID + "/" + z.Label,
				Stops:       z.Members,
				Vehicle:     req.Vehicle,
				Depot:       req.Depot,
				TimeLimitMs: req.TimeLimitMs,
			})
			if err != nil {
				results[i].Error = err.Error()
				results[i].Kind = Outcome(err)
				return nil
			}
			results[i].Route = &rt
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

// Outcome labels err for metrics and API payloads.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := solver.KindName(err); k != "" {
		return k
	}
	switch {
	case errors.Is(err, vrp.ErrEmptyCohort), errors.Is(err, vrp.ErrMissingCoordinates), errors.Is(err, vrp.ErrMalformedProblem):
		return "invalid"
	case errors.Is(err, vrp.ErrNoRoute), errors.Is(err, vrp.ErrInvalidRoute):
		return "bad_route"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}
