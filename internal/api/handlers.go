package api

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "dispacio/internal/model"
    "dispacio/internal/solver"
    "dispacio/internal/store"
    "dispacio/internal/vrp"
)

// planTenant resolves the tenant a planning call acts for. Admins may act on
// behalf of the tenant named in the body.
func planTenant(p Principal, bodyTenant string) (string, bool) {
    if bodyTenant == "" || bodyTenant == p.Tenant { return p.Tenant, true }
    if p.IsAdmin() { return bodyTenant, true }
    return "", false
}

// beginPlan runs the checks shared by the planning endpoints: method,
// identity, role and rate limit.
func (s *Server) beginPlan(w http.ResponseWriter, r *http.Request) (Principal, bool) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return Principal{}, false
    }
    p, ok := s.authenticate(w, r)
    if !ok { return Principal{}, false }
    if !p.CanPlan() { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return Principal{}, false }
    if !s.allow(p.Tenant) {
        w.Header().Set("Retry-After", "1")
        writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded for tenant", r.URL.Path)
        return Principal{}, false
    }
    return p, true
}

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
    p, ok := s.beginPlan(w, r)
    if !ok { return }
    var req model.OptimizeRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateOptimizeRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
        return
    }
    tenant, ok := planTenant(p, req.TenantID)
    if !ok { writeProblem(w, 403, "Forbidden", "tenant mismatch", r.URL.Path); return }
    rt, err := s.Planner.Optimize(r.Context(), tenant, req)
    if err != nil { writePlanError(w, r, err); return }
    writeJSON(w, http.StatusOK, rt)
}

// ClusterHandler handles POST /v1/zones/cluster
func (s *Server) ClusterHandler(w http.ResponseWriter, r *http.Request) {
    p, ok := s.beginPlan(w, r)
    if !ok { return }
    var req model.ClusterRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateClusterRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid cluster request", err.Error(), r.URL.Path)
        return
    }
    tenant, ok := planTenant(p, req.TenantID)
    if !ok { writeProblem(w, 403, "Forbidden", "tenant mismatch", r.URL.Path); return }
    zones, err := s.Planner.Cluster(r.Context(), tenant, req)
    if err != nil { writePlanError(w, r, err); return }
    writeJSON(w, http.StatusOK, map[string]any{"batchId": batchOf(zones), "zones": zones})
}

// ZonesOptimizeHandler handles POST /v1/zones/optimize
func (s *Server) ZonesOptimizeHandler(w http.ResponseWriter, r *http.Request) {
    p, ok := s.beginPlan(w, r)
    if !ok { return }
    var req model.ZoneOptimizeRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateZoneOptimizeRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid zone optimize request", err.Error(), r.URL.Path)
        return
    }
    tenant, ok := planTenant(p, req.TenantID)
    if !ok { writeProblem(w, 403, "Forbidden", "tenant mismatch", r.URL.Path); return }
    results, err := s.Planner.OptimizeZones(r.Context(), tenant, req)
    if err != nil { writePlanError(w, r, err); return }
    batch := ""
    if len(results) > 0 { batch = results[0].Zone.BatchID }
    writeJSON(w, http.StatusOK, map[string]any{"batchId": batch, "results": results})
}

func batchOf(zones []model.Zone) string {
    if len(zones) == 0 { return "" }
    return zones[0].BatchID
}

// ZonesHandler handles GET /v1/zones?batchId=
func (s *Server) ZonesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/zones" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.authenticate(w, r)
    if !ok { return }
    batch := r.URL.Query().Get("batchId")
    items, err := s.Store.ListZones(r.Context(), p.Tenant, batch)
    if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Not Found", "unknown batch", r.URL.Path); return }
    if err != nil { writeProblem(w, 500, "List zones failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"batchId": batchOf(items), "items": items})
}

// RoutesIndexHandler handles GET /v1/routes
func (s *Server) RoutesIndexHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/routes" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.authenticate(w, r)
    if !ok { return }
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 1 || n > 500 { writeProblem(w, 400, "Invalid limit", "limit must be in [1,500]", r.URL.Path); return }
        limit = n
    }
    items, next, err := s.Store.ListRoutes(r.Context(), p.Tenant, cursor, limit)
    if err != nil { writeProblem(w, 500, "List routes failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// RouteByIDHandler handles GET /v1/routes/{id}
func (s *Server) RouteByIDHandler(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/v1/routes/")
    if id == "" || strings.Contains(id, "/") { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.authenticate(w, r)
    if !ok { return }
    rt, err := s.Store.GetRoute(r.Context(), p.Tenant, id)
    if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Not Found", "route not found", r.URL.Path); return }
    if err != nil { writeProblem(w, 500, "Get route failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, rt)
}

// PlanMetricsHandler handles GET /v1/admin/plan-metrics?runDate=&engine=
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p, ok := s.authenticate(w, r)
    if !ok { return }
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    runDate := r.URL.Query().Get("runDate")
    if runDate != "" {
        if _, err := time.Parse(time.DateOnly, runDate); err != nil { writeProblem(w, 400, "Invalid runDate", "expected YYYY-MM-DD", r.URL.Path); return }
    }
    items, err := s.Store.ListPlanMetrics(r.Context(), p.Tenant, runDate, r.URL.Query().Get("engine"))
    if err != nil { writeProblem(w, 500, "Metrics failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

// ReadyHandler pings the store, the Redis broker and the remote solver when
// they are configured.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    for name, c := range s.checks {
        if err := c.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", name+": "+err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

// writePlanError maps pipeline failures to problem responses.
func writePlanError(w http.ResponseWriter, r *http.Request, err error) {
    status, title := http.StatusInternalServerError, "Optimization failed"
    switch {
    case errors.Is(err, vrp.ErrEmptyCohort), errors.Is(err, vrp.ErrMissingCoordinates), errors.Is(err, vrp.ErrMalformedProblem):
        status, title = http.StatusBadRequest, "Invalid optimization input"
    case errors.Is(err, solver.ErrNoSolution):
        status, title = http.StatusUnprocessableEntity, "No feasible route"
    case errors.Is(err, solver.ErrUnavailable):
        status, title = http.StatusServiceUnavailable, "Solver unavailable"
    case errors.Is(err, solver.ErrTimeout):
        status, title = http.StatusGatewayTimeout, "Solver timed out"
    }
    writeProblem(w, status, title, err.Error(), r.URL.Path)
}
