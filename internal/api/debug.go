package api

import (
    "net/http"
    "time"

    "dispacio/internal/buildinfo"
)

// DebugJSON reports build info and the effective, non-secret settings.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    c := s.Config
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "engine": s.Planner.EngineName(),
        "config": map[string]any{
            "port": c.Port,
            "authMode": c.Auth.Mode,
            "allowOrigins": c.AllowOrigins,
            "rateRps": c.RateRPS,
            "rateBurst": c.RateBurst,
            "maxParallelZones": c.MaxParallelZones,
            "solver": map[string]any{"engine": c.Solver.Engine, "timeLimitMs": c.Solver.TimeLimitMs, "hardCeilingMs": c.Solver.HardCeilingMs},
            "optimizer": c.Optimizer,
            "clustering": c.Clustering,
            "hasDatabaseUrl": c.DatabaseURL != "",
            "hasRedisUrl": c.RedisURL != "",
        },
    }
    writeJSON(w, http.StatusOK, info)
}
