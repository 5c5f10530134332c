// Package api implements the HTTP surface of the dispatch service.
package api

import (
    "errors"
    "net/http"
    "strings"
)

type Principal struct {
	Tenant   string
	Role     string // admin, dispatcher, driver, viewer
	DriverID string
}

var errUnauthenticated = errors.New("missing or invalid bearer token")

// getPrincipal extracts tenant and role from the bearer token or headers.
// - If Authorization: Bearer is present, uses the configured verifier (dev/hmac).
// - Else, in dev mode only, falls back to X-Tenant-Id / X-Role headers.
func (s *Server) getPrincipal(r *http.Request) (Principal, error) {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        pr, err := s.Auth.Verify(tok)
        if err != nil { return Principal{}, err }
        return Principal{Tenant: pr.Tenant, Role: pr.Role, DriverID: pr.DriverID}, nil
    }
    if s.Auth != nil && s.Auth.Mode != "dev" { return Principal{}, errUnauthenticated }
    tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
    role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role")))
    if tenant == "" { tenant = "t_demo" }
    if role == "" { role = "admin" }
    return Principal{Tenant: tenant, Role: role, DriverID: r.Header.Get("X-Driver-Id")}, nil
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanPlan reports whether the principal may run clustering and optimization.
func (p Principal) CanPlan() bool { return p.IsAdmin() || p.Role == "dispatcher" }

// authenticate writes a 401 problem and returns false when the request
// carries no usable identity.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (Principal, bool) {
    p, err := s.getPrincipal(r)
    if err != nil {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
        return Principal{}, false
    }
    return p, true
}
