package store

import (
    "context"
    "errors"

    "dispacio/internal/model"
)

// Store is the persistence interface used by the planner and API server.
type Store interface {
    // Zones
    SaveZones(ctx context.Context, tenantID string, zones []model.Zone) (batchID string, err error)
    ListZones(ctx context.Context, tenantID, batchID string) ([]model.Zone, error)

    // Routes. SaveRoute replaces any earlier route with the same zone and driver.
    SaveRoute(ctx context.Context, tenantID string, r model.Route) (model.Route, error)
    GetRoute(ctx context.Context, tenantID, routeID string) (model.Route, error)
    ListRoutes(ctx context.Context, tenantID, cursor string, limit int) ([]model.Route, string, error)

    // Engine run metrics
    SavePlanMetrics(ctx context.Context, tenantID, runDate, engine string, metrics map[string]any) error
    ListPlanMetrics(ctx context.Context, tenantID, runDate, engine string) ([]model.PlanMetrics, error)

    Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// routeKey identifies the slot a route occupies; empty when the route is
// not tied to a zone or driver.
func routeKey(r model.Route) string {
    if r.ZoneID == "" && r.DriverID == "" { return "" }
    return r.ZoneID + "|" + r.DriverID
}
