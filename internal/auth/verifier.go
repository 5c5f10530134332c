// Package auth provides bearer token verification.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"dispacio/internal/config"
)

// Verifier validates bearer tokens and extracts tenant/role claims.
// Supports modes: dev (tenant:role, no verification) and hmac (HS256 JWT).
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	TenantClaim string
	RoleClaim   string
	DriverClaim string
	parser      *jwt.Parser
}

type Principal struct {
	Tenant   string
	Role     string
	DriverID string
}

var ErrInvalidToken = errors.New("invalid token")

func NewVerifier(c config.Auth) *Verifier {
	mode := strings.ToLower(strings.TrimSpace(c.Mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:        mode,
		HMACSecret:  []byte(c.HMACSecret),
		TenantClaim: or(c.TenantClaim, "tenant"),
		RoleClaim:   or(c.RoleClaim, "role"),
		DriverClaim: or(c.DriverClaim, "sub"),
		parser:      jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

func or(v, d string) string {
	if v != "" {
		return v
	}
	return d
}

func (v *Verifier) Verify(token string) (Principal, error) {
	switch v.Mode {
	case "dev":
		// token format: tenant:role
		parts := strings.Split(token, ":")
		if len(parts) >= 2 && parts[0] != "" {
			return Principal{Tenant: parts[0], Role: strings.ToLower(parts[1])}, nil
		}
		return Principal{}, fmt.Errorf("%w: expected tenant:role", ErrInvalidToken)
	case "hmac":
		claims := jwt.MapClaims{}
		_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return v.HMACSecret, nil
		})
		if err != nil {
			return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return v.principal(claims)
	default:
		return Principal{}, errors.New("unsupported auth mode")
	}
}

func (v *Verifier) principal(claims jwt.MapClaims) (Principal, error) {
	tenant, _ := claims[v.TenantClaim].(string)
	role, _ := claims[v.RoleClaim].(string)
	driver, _ := claims[v.DriverClaim].(string)
	if tenant == "" {
		return Principal{}, fmt.Errorf("%w: missing tenant claim", ErrInvalidToken)
	}
	if role == "" {
		role = "user"
	}
	return Principal{Tenant: tenant, Role: strings.ToLower(role), DriverID: driver}, nil
}
