//go:build postgres_integration

package store

import (
    "os"
    "testing"

    "dispacio/internal/model"
)

func TestPostgresRoundTrip(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    defer p.Close()
    ctx := t.Context()
    if err := p.Migrate(ctx); err != nil { t.Fatalf("Migrate: %v", err) }

    batch, err := p.SaveZones(ctx, "t_it", []model.Zone{{Label: "Zone 1", MemberStopIDs: []string{"a", "b"}, Count: 2, Zoom: 13}})
    if err != nil { t.Fatalf("SaveZones: %v", err) }
    zs, err := p.ListZones(ctx, "t_it", batch)
    if err != nil || len(zs) != 1 || zs[0].Count != 2 { t.Fatalf("ListZones: %v %+v", err, zs) }

    r, err := p.SaveRoute(ctx, "t_it", model.Route{ZoneID: "Zone 1", TotalDistanceKm: 1.5, Stops: []model.RouteStop{{ID: "a", Rank: 1}}})
    if err != nil { t.Fatalf("SaveRoute: %v", err) }
    got, err := p.GetRoute(ctx, "t_it", r.ID)
    if err != nil || len(got.Stops) != 1 { t.Fatalf("GetRoute: %v %+v", err, got) }
    if _, _, err := p.ListRoutes(ctx, "t_it", "", 1); err != nil { t.Fatalf("ListRoutes: %v", err) }
    if err := p.SavePlanMetrics(ctx, "t_it", "2024-01-01", "alns", map[string]any{"iterations": 10}); err != nil { t.Fatalf("SavePlanMetrics: %v", err) }
}
