package store

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"
    "dispacio/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu       sync.Mutex
    zones    map[string]map[string][]model.Zone  // tenant -> batch -> zones
    batches  map[string][]string                 // tenant -> batch ids, oldest first
    routes   map[string]model.Route              // id -> route
    routeTen map[string][]string                 // tenant -> route ids, oldest first
    planMx   map[string][]model.PlanMetrics      // tenant -> runs, oldest first
    now      func() time.Time
}

func NewMemory() *Memory {
    return &Memory{
        zones: map[string]map[string][]model.Zone{},
        batches: map[string][]string{},
        routes: map[string]model.Route{},
        routeTen: map[string][]string{},
        planMx: map[string][]model.PlanMetrics{},
        now: time.Now,
    }
}

func (m *Memory) SaveZones(ctx context.Context, tenantID string, zones []model.Zone) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    batch := uuid.New().String()
    now := m.now().UTC()
    out := make([]model.Zone, len(zones))
    for i, z := range zones {
        z.BatchID = batch
        z.CreatedAt = now
        out[i] = z
    }
    if m.zones[tenantID] == nil { m.zones[tenantID] = map[string][]model.Zone{} }
    m.zones[tenantID][batch] = out
    m.batches[tenantID] = append(m.batches[tenantID], batch)
    return batch, nil
}

// ListZones returns the zones of batchID, or of the latest batch when empty.
func (m *Memory) ListZones(ctx context.Context, tenantID, batchID string) ([]model.Zone, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if batchID == "" {
        b := m.batches[tenantID]
        if len(b) == 0 { return []model.Zone{}, nil }
        batchID = b[len(b)-1]
    }
    zs, ok := m.zones[tenantID][batchID]
    if !ok { return nil, ErrNotFound }
    return append([]model.Zone(nil), zs...), nil
}

func (m *Memory) SaveRoute(ctx context.Context, tenantID string, r model.Route) (model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if r.ID == "" { r.ID = uuid.New().String() }
    if r.CreatedAt.IsZero() { r.CreatedAt = m.now().UTC() }
    if key := routeKey(r); key != "" {
        ids := m.routeTen[tenantID][:0]
        for _, id := range m.routeTen[tenantID] {
            if routeKey(m.routes[id]) == key {
                delete(m.routes, id)
                continue
            }
            ids = append(ids, id)
        }
        m.routeTen[tenantID] = ids
    }
    m.routes[r.ID] = r
    m.routeTen[tenantID] = append(m.routeTen[tenantID], r.ID)
    return r, nil
}

func (m *Memory) GetRoute(ctx context.Context, tenantID, routeID string) (model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    for _, id := range m.routeTen[tenantID] {
        if id == routeID { return m.routes[id], nil }
    }
    return model.Route{}, ErrNotFound
}

// ListRoutes pages through a tenant's routes, newest first. The cursor is the
// id of the last route of the previous page.
func (m *Memory) ListRoutes(ctx context.Context, tenantID, cursor string, limit int) ([]model.Route, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.routeTen[tenantID]
    start := len(ids) - 1
    if cursor != "" {
        for i := len(ids) - 1; i >= 0; i-- {
            if ids[i] == cursor { start = i - 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Route{}
    var next string
    for i := start; i >= 0 && len(out) < limit; i-- {
        out = append(out, m.routes[ids[i]])
        next = ids[i]
    }
    if len(out) < limit || start-len(out) < 0 { next = "" }
    return out, next, nil
}

func (m *Memory) SavePlanMetrics(ctx context.Context, tenantID, runDate, engine string, metrics map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.planMx[tenantID] = append(m.planMx[tenantID], model.PlanMetrics{RunDate: runDate, Engine: engine, Metrics: metrics, CreatedAt: m.now().UTC()})
    return nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, tenantID, runDate, engine string) ([]model.PlanMetrics, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.PlanMetrics{}
    for _, pm := range m.planMx[tenantID] {
        if (runDate == "" || pm.RunDate == runDate) && (engine == "" || pm.Engine == engine) {
            out = append(out, pm)
        }
    }
    return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
