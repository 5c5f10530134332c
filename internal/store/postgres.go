package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "dispacio/internal/geo"
    "dispacio/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        _ = db.Close()
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// Migrate creates the tables the store needs.
func (p *Postgres) Migrate(ctx context.Context) error {
    for _, stmt := range schema {
        if _, err := p.db.ExecContext(ctx, stmt); err != nil {
            return fmt.Errorf("migrate: %w", err)
        }
    }
    return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) SaveZones(ctx context.Context, tenantID string, zones []model.Zone) (string, error) {
    batch := uuid.New().String()
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return "", err }
    defer func(){ _ = tx.Rollback() }()
    for i, z := range zones {
        members, err := json.Marshal(nonNil(z.MemberStopIDs))
        if err != nil { return "", err }
        var lat, lng any
        if z.Center != nil { lat, lng = z.Center.Lat, z.Center.Lng }
        _, err = tx.ExecContext(ctx, `INSERT INTO zones (tenant_id, batch_id, seq, label, center_lat, center_lng, member_stop_ids, member_count, zoom) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
            tenantID, batch, i, z.Label, lat, lng, string(members), z.Count, z.Zoom)
        if err != nil { return "", fmt.Errorf("insert zone %s: %w", z.Label, err) }
    }
    if err := tx.Commit(); err != nil { return "", err }
    return batch, nil
}

func (p *Postgres) ListZones(ctx context.Context, tenantID, batchID string) ([]model.Zone, error) {
    if batchID == "" {
        err := p.db.QueryRowContext(ctx, `SELECT batch_id FROM zones WHERE tenant_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`, tenantID).Scan(&batchID)
        if errors.Is(err, sql.ErrNoRows) { return []model.Zone{}, nil }
        if err != nil { return nil, err }
    }
    rows, err := p.db.QueryContext(ctx, `SELECT label, center_lat, center_lng, member_stop_ids, member_count, zoom, created_at FROM zones WHERE tenant_id=$1 AND batch_id=$2 ORDER BY seq`, tenantID, batchID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Zone{}
    for rows.Next() {
        var z model.Zone
        var lat, lng sql.NullFloat64
        var members []byte
        if err := rows.Scan(&z.Label, &lat, &lng, &members, &z.Count, &z.Zoom, &z.CreatedAt); err != nil { return nil, err }
        if lat.Valid && lng.Valid { z.Center = &geo.Point{Lat: lat.Float64, Lng: lng.Float64} }
        if err := json.Unmarshal(members, &z.MemberStopIDs); err != nil { return nil, fmt.Errorf("zone %s members: %w", z.Label, err) }
        z.BatchID = batchID
        out = append(out, z)
    }
    if err := rows.Err(); err != nil { return nil, err }
    if len(out) == 0 { return nil, ErrNotFound }
    return out, nil
}

func (p *Postgres) SaveRoute(ctx context.Context, tenantID string, r model.Route) (model.Route, error) {
    if r.ID == "" { r.ID = uuid.New().String() }
    if r.CreatedAt.IsZero() { r.CreatedAt = time.Now().UTC() }
    stops, err := json.Marshal(nonNil(r.Stops))
    if err != nil { return model.Route{}, err }
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.Route{}, err }
    defer func(){ _ = tx.Rollback() }()
    if routeKey(r) != "" {
        if _, err := tx.ExecContext(ctx, `DELETE FROM routes WHERE tenant_id=$1 AND zone_id=$2 AND driver_id=$3`, tenantID, r.ZoneID, r.DriverID); err != nil {
            return model.Route{}, err
        }
    }
    _, err = tx.ExecContext(ctx, `INSERT INTO routes (id, tenant_id, zone_id, driver_id, engine, total_distance_km, total_duration_sec, stops, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
        r.ID, tenantID, r.ZoneID, r.DriverID, r.Engine, r.TotalDistanceKm, r.TotalDurationSeconds, string(stops), r.CreatedAt)
    if err != nil { return model.Route{}, err }
    if err := tx.Commit(); err != nil { return model.Route{}, err }
    return r, nil
}

const routeColumns = `id, zone_id, driver_id, engine, total_distance_km, total_duration_sec, stops, created_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanRoute(s rowScanner) (model.Route, error) {
    var r model.Route
    var stops []byte
    if err := s.Scan(&r.ID, &r.ZoneID, &r.DriverID, &r.Engine, &r.TotalDistanceKm, &r.TotalDurationSeconds, &stops, &r.CreatedAt); err != nil {
        return model.Route{}, err
    }
    if err := json.Unmarshal(stops, &r.Stops); err != nil { return model.Route{}, fmt.Errorf("route %s stops: %w", r.ID, err) }
    return r, nil
}

func (p *Postgres) GetRoute(ctx context.Context, tenantID, routeID string) (model.Route, error) {
    r, err := scanRoute(p.db.QueryRowContext(ctx, `SELECT `+routeColumns+` FROM routes WHERE tenant_id=$1 AND id=$2`, tenantID, routeID))
    if errors.Is(err, sql.ErrNoRows) { return model.Route{}, ErrNotFound }
    return r, err
}

func (p *Postgres) ListRoutes(ctx context.Context, tenantID, cursor string, limit int) ([]model.Route, string, error) {
    if limit <= 0 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT `+routeColumns+` FROM routes
        WHERE tenant_id=$1 AND ($2 = '' OR (created_at, id) < (SELECT created_at, id FROM routes WHERE tenant_id=$1 AND id=$2))
        ORDER BY created_at DESC, id DESC LIMIT $3`, tenantID, cursor, limit+1)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Route{}
    for rows.Next() {
        r, err := scanRoute(rows)
        if err != nil { return nil, "", err }
        out = append(out, r)
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) > limit {
        out = out[:limit]
        next = out[limit-1].ID
    }
    return out, next, nil
}

func (p *Postgres) SavePlanMetrics(ctx context.Context, tenantID, runDate, engine string, metrics map[string]any) error {
    b, err := json.Marshal(metrics)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO plan_metrics (tenant_id, run_date, engine, metrics) VALUES ($1,$2,$3,$4)`, tenantID, runDate, engine, string(b))
    return err
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, tenantID, runDate, engine string) ([]model.PlanMetrics, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT run_date, engine, metrics, created_at FROM plan_metrics
        WHERE tenant_id=$1 AND ($2 = '' OR run_date=$2) AND ($3 = '' OR engine=$3) ORDER BY created_at, id`, tenantID, runDate, engine)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.PlanMetrics{}
    for rows.Next() {
        var pm model.PlanMetrics
        var raw []byte
        if err := rows.Scan(&pm.RunDate, &pm.Engine, &raw, &pm.CreatedAt); err != nil { return nil, err }
        if err := json.Unmarshal(raw, &pm.Metrics); err != nil { return nil, err }
        out = append(out, pm)
    }
    return out, rows.Err()
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](v []T) []T { if v == nil { return []T{} }; return v }
