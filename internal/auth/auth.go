// Package auth verifies the credentials issued by the external identity
// collaborator. Tokens are consumed here, never issued: identity tokens are
// HMAC-signed JWTs carrying the principal and its tenant affiliations, and
// machine-to-machine ingestion uses a static service token.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/LucasQuiles/RestockR/internal/alerts"
)

type contextKey string

const claimsKey contextKey = "identity"

// Claims are the identity-token claims supplied by the identity collaborator.
// ParentAccounts lists the tenants the principal is affiliated with, most
// specific first.
type Claims struct {
	Username       string   `json:"username"`
	ParentAccounts []string `json:"parentAccounts,omitempty"`
	jwt.RegisteredClaims
}

// PrincipalID returns the stable identity used for targeted fanout.
func (c *Claims) PrincipalID() string {
	return c.Subject
}

// WithClaims returns a context carrying verified identity claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// FromContext extracts the verified identity claims from a request context.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// TenantContext resolves the tenant for a request: an explicit parentId query
// override wins, then the principal's first tenant affiliation, then the
// default tenant sentinel.
func TenantContext(r *http.Request) alerts.TenantContext {
	if override := r.URL.Query().Get("parentId"); override != "" {
		return alerts.TenantContext{TenantID: override}
	}
	if claims, ok := FromContext(r.Context()); ok && len(claims.ParentAccounts) > 0 {
		return alerts.TenantContext{TenantID: claims.ParentAccounts[0]}
	}
	return alerts.TenantContext{TenantID: alerts.DefaultTenantID}
}

// Identity returns middleware that verifies the Bearer identity token and
// injects its claims into the request context. Missing or invalid tokens are
// rejected before any side effect.
func Identity(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearer(r)
			if tokenString == "" {
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}

			claims, err := validateToken(tokenString, secret)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// ServiceToken returns middleware that checks the static machine-to-machine
// token used by scraper ingestion. The token is accepted either as a Bearer
// credential or in the X-Service-Token header.
func ServiceToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Service-Token")
			if presented == "" {
				presented = extractBearer(r)
			}
			if presented == "" {
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
