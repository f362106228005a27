package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"mailadmin/pkg/metrics"
)

const bearerPrefix = "Bearer "

// Resolver maps a bearer token to an active principal.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Principal, error)
}

// Gate enforces route policies before handlers run.
type Gate struct {
	resolver Resolver
	log      zerolog.Logger
}

// NewGate returns a Gate resolving tokens through resolver.
func NewGate(resolver Resolver, log zerolog.Logger) *Gate {
	return &Gate{resolver: resolver, log: log}
}

// Enforce returns middleware applying policy to every request it wraps.
func (g *Gate) Enforce(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policy.Kind() == PolicyOpen || !policy.Declared() {
				metrics.AuthGateDecisions.WithLabelValues("open").Inc()
				next.ServeHTTP(w, r)
				return
			}

			p, err := g.Authorize(r, policy)
			if err != nil {
				g.reject(w, r, policy, err)
				return
			}

			metrics.AuthGateDecisions.WithLabelValues("allowed").Inc()
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// Authorize checks the request's credentials against a non-open policy and
// returns the resolved principal. Errors are ErrAuthMissing, ErrAuthInvalid,
// ErrAuthForbidden, or a wrapped lookup failure.
func (g *Gate) Authorize(r *http.Request, policy Policy) (Principal, error) {
	token, ok := BearerToken(r)
	if !ok {
		return nil, ErrAuthMissing
	}

	p, err := g.resolver.Resolve(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrAuthInvalid
		}
		return nil, err
	}

	if policy.Kind() == PolicyRoleRequired {
		user, isUser := p.(User)
		if !isUser || user.Role != policy.Role() {
			return nil, ErrAuthForbidden
		}
	}
	return p, nil
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, policy Policy, err error) {
	status, message, outcome := http.StatusInternalServerError, "Internal server error", "error"
	switch {
	case errors.Is(err, ErrAuthMissing):
		status, message, outcome = http.StatusUnauthorized, "Missing or invalid authorization token", "missing"
	case errors.Is(err, ErrAuthInvalid):
		status, message, outcome = http.StatusUnauthorized, "Invalid or expired token", "invalid"
	case errors.Is(err, ErrAuthForbidden):
		status, message, outcome = http.StatusForbidden, "Insufficient permissions", "forbidden"
	default:
		g.log.Error().Err(err).Str("path", r.URL.Path).Msg("resolve bearer token")
	}
	metrics.AuthGateDecisions.WithLabelValues(outcome).Inc()
	g.log.Debug().Str("path", r.URL.Path).Stringer("policy", policy).Str("outcome", outcome).Msg("request rejected by auth gate")

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is case-sensitive and followed by exactly one space.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := header[len(bearerPrefix):]
	if token == "" || strings.HasPrefix(token, " ") {
		return "", false
	}
	return token, true
}
