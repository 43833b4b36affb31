package auth

import (
	"net/http"
	"strings"

	authlib "github.com/jpvieirapereira/running-club-backend/libs/go/auth"
)

// Middleware enforces bearer-token authentication on incoming requests.
type Middleware struct {
	inner authlib.Middleware
}

// NewMiddleware constructs Middleware with validation config. Health, metrics and the Strava
// webhook callback stay public.
func NewMiddleware(cfg Config) Middleware {
	skipper := func(r *http.Request) bool {
		switch {
		case r.URL.Path == "/healthz", r.URL.Path == "/metrics":
			return true
		case strings.HasPrefix(r.URL.Path, "/webhooks/"):
			return true
		}
		return false
	}
	return Middleware{inner: authlib.NewMiddleware(cfg, skipper)}
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return m.inner.Wrap(next)
}
