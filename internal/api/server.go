package api

import (
    "context"
    "fmt"
    "log"
    "net/http"
    "time"

    "github.com/patrickmn/go-cache"

    "dispacio/internal/auth"
    "dispacio/internal/config"
    "dispacio/internal/dispatch"
    "dispacio/internal/events"
    "dispacio/internal/opt"
    "dispacio/internal/solver"
    "dispacio/internal/store"
)

type Server struct {
    Planner *dispatch.Planner
    Store   store.Store
    Broker  events.EventBroker
    Auth    *auth.Verifier
    Config  config.Config

    limiters *cache.Cache // tenant -> *rate.Limiter
    checks   map[string]pinger
}

type pinger interface{ Ping(ctx context.Context) error }

// NewServer wires the service from cfg. Without DATABASE_URL it uses the
// in-memory store; without REDIS_URL an in-process broker.
func NewServer(cfg config.Config) (*Server, error) {
    checks := map[string]pinger{}
    var st store.Store
    if cfg.DatabaseURL == "" {
        st = store.NewMemory()
    } else {
        pg, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil { return nil, fmt.Errorf("postgres: %w", err) }
        if cfg.DBMigrate {
            ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
            err := pg.Migrate(ctx)
            cancel()
            if err != nil { return nil, err }
        }
        st = pg
    }
    checks["store"] = st

    var broker events.EventBroker = events.NewBroker()
    if cfg.RedisURL != "" {
        rb, err := events.NewRedisBroker(cfg.RedisURL)
        if err != nil {
            log.Printf("redis broker disabled err=%v", err)
        } else {
            broker = rb
            checks["redis"] = rb
        }
    }

    var engine solver.Engine
    switch cfg.Solver.Engine {
    case "remote":
        re := solver.NewRemoteEngine(cfg.Solver.URL, nil)
        engine = re
        checks["solver"] = re
    case "none":
    default:
        engine = opt.NewEngine(opt.Config{Seed: cfg.Solver.Seed, IterationsLimit: cfg.Solver.Iterations})
    }
    adapter := solver.NewAdapter(engine, cfg.HardCeiling())

    depot := cfg.Optimizer.FallbackDepot
    if depot == nil { depot = config.Default().Optimizer.FallbackDepot }
    planner := dispatch.New(adapter, st, broker, dispatch.Options{
        Zone:          cfg.ZoneOptions(),
        VRP:           cfg.VRPOptions(),
        FallbackDepot: *depot,
        TimeLimit:     cfg.TimeLimit(),
        MaxParallel:   cfg.MaxParallelZones,
    })
    return &Server{
        Planner:  planner,
        Store:    st,
        Broker:   broker,
        Auth:     auth.NewVerifier(cfg.Auth),
        Config:   cfg,
        limiters: cache.New(10*time.Minute, 20*time.Minute),
        checks:   checks,
    }, nil
}

// Handler returns the routed API with its middleware chain.
func (s *Server) Handler() http.Handler {
    mux := http.NewServeMux()

    // Planning
    mux.HandleFunc("/v1/optimize", s.OptimizeHandler)
    mux.HandleFunc("/v1/zones/cluster", s.ClusterHandler)
    mux.HandleFunc("/v1/zones/optimize", s.ZonesOptimizeHandler)

    // Results
    mux.HandleFunc("/v1/zones", s.ZonesHandler)
    mux.HandleFunc("/v1/routes", s.RoutesIndexHandler)
    mux.HandleFunc("/v1/routes/", s.RouteByIDHandler)
    mux.HandleFunc("/v1/events/ws", s.EventsWSHandler)

    // Admin
    mux.HandleFunc("/v1/admin/plan-metrics", s.PlanMetricsHandler)

    // Health and ops
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)
    mux.Handle("/metrics", metricsHandler())
    mux.HandleFunc("/debug/info", s.DebugJSON)

    return s.cors(requestID(instrument(mux)))
}

// Close releases the store and broker connections.
func (s *Server) Close() error {
    type closer interface{ Close() error }
    if c, ok := s.Broker.(closer); ok { _ = c.Close() }
    if c, ok := s.Store.(closer); ok { return c.Close() }
    return nil
}
