package api

import (
    "bufio"
    "errors"
    "log"
    "net"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/patrickmn/go-cache"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/rs/cors"
    "golang.org/x/time/rate"

    "dispacio/internal/metrics"
    "dispacio/internal/obs"
)

const requestIDHeader = "X-Request-Id"

// requestID tags every request with an id, taken from X-Request-Id when the
// caller sends one.
func requestID(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        id := strings.TrimSpace(r.Header.Get(requestIDHeader))
        if id == "" || len(id) > 128 { id = uuid.NewString() }
        w.Header().Set(requestIDHeader, id)
        next.ServeHTTP(w, r.WithContext(obs.WithRequestID(r.Context(), id)))
    })
}

type statusWriter struct {
    http.ResponseWriter
    status int
}

func (w *statusWriter) WriteHeader(code int) {
    if w.status == 0 { w.status = code }
    w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
    if w.status == 0 { w.status = http.StatusOK }
    return w.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := w.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, errors.New("hijack not supported") }
    if w.status == 0 { w.status = http.StatusSwitchingProtocols }
    return h.Hijack()
}

func (w *statusWriter) Flush() {
    if f, ok := w.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

// instrument logs each request and records it in the HTTP metrics.
func instrument(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        sw := &statusWriter{ResponseWriter: w}
        next.ServeHTTP(sw, r)
        if sw.status == 0 { sw.status = http.StatusOK }
        dur := time.Since(start)
        path := metricPath(r.URL.Path)
        status := strconv.Itoa(sw.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
        log.Printf("req_id=%s method=%s path=%s status=%d dur=%dms", obs.RequestID(r.Context()), r.Method, r.URL.Path, sw.status, dur.Milliseconds())
    })
}

// metricPath collapses ids so the path label stays bounded.
func metricPath(p string) string {
    if strings.HasPrefix(p, "/v1/routes/") && len(p) > len("/v1/routes/") { return "/v1/routes/{id}" }
    switch p {
    case "/v1/optimize", "/v1/zones/cluster", "/v1/zones/optimize", "/v1/zones", "/v1/routes",
        "/v1/events/ws", "/v1/admin/plan-metrics", "/healthz", "/readyz", "/metrics", "/debug/info":
        return p
    }
    return "other"
}

func metricsHandler() http.Handler {
    metrics.RegisterDefault()
    return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

func (s *Server) cors(next http.Handler) http.Handler {
    return cors.New(cors.Options{
        AllowedOrigins: s.Config.AllowOrigins,
        AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
        AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Tenant-Id", "X-Role", "X-Driver-Id", requestIDHeader},
        ExposedHeaders: []string{requestIDHeader},
        MaxAge:         600,
    }).Handler(next)
}

// allow applies the per-tenant token bucket. Limiters idle for longer than
// the cache expiry are dropped. A zero rate disables limiting.
func (s *Server) allow(tenant string) bool {
    if s.Config.RateRPS <= 0 { return true }
    if v, ok := s.limiters.Get(tenant); ok {
        s.limiters.SetDefault(tenant, v)
        return v.(*rate.Limiter).Allow()
    }
    burst := s.Config.RateBurst
    if burst < 1 { burst = 1 }
    lim := rate.NewLimiter(rate.Limit(s.Config.RateRPS), burst)
    if err := s.limiters.Add(tenant, lim, cache.DefaultExpiration); err != nil {
        // lost the race to another request; use the stored one
        if v, ok := s.limiters.Get(tenant); ok { lim = v.(*rate.Limiter) }
    }
    return lim.Allow()
}
