package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	staticmetrics "github.com/dreschagin/static-server/internal/metrics"
)

var unauthenticatedPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
}

// Middleware validates the bearer token on admin routes. An empty token
// disables the check.
func Middleware(bearerToken string, metrics *staticmetrics.Metrics, next http.Handler) http.Handler {
	if bearerToken == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := unauthenticatedPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(bearerToken)) != 1 {
			metrics.AdminAuthFailures.Inc()
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
