package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // OptimizeRuns counts optimization runs by engine and outcome
    // (ok, infeasible, timeout, unavailable, invalid, error).
    OptimizeRuns = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "optimize_runs_total", Help: "Route optimization runs by engine and outcome."},
        []string{"engine", "outcome"},
    )
    // SolverDuration tracks how long the engine took to answer
    SolverDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "solver_duration_seconds", Help: "Engine wall time in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}},
        []string{"engine", "outcome"},
    )
    // ClusterZones observes the number of zones per clustering run, unassigned included
    ClusterZones = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "cluster_zones", Help: "Zones produced per clustering run.", Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55}},
    )
    // RouteDistanceKm observes total distance of optimized routes
    RouteDistanceKm = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "route_distance_km", Help: "Total distance of optimized routes in km.", Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500}},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(OptimizeRuns)
        Registry.MustRegister(SolverDuration)
        Registry.MustRegister(ClusterZones)
        Registry.MustRegister(RouteDistanceKm)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
