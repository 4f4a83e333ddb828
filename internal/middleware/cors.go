// Package middleware provides HTTP middleware for the PressAssist API.
package middleware

import (
	"net/http"
	"strings"
)

// CORS returns middleware that admits the configured frontend origin. In
// development mode every origin is admitted so the Vite dev server can talk
// to the API directly.
func CORS(frontendURL string, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && (isDev || originMatches(origin, frontendURL)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				// Credentials only for the explicitly configured origin.
				// Echoing arbitrary origins with credentials enables CSRF.
				if !isDev && originMatches(origin, frontendURL) {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originMatches(origin, frontendURL string) bool {
	if frontendURL == "" {
		return false
	}
	return strings.TrimSuffix(origin, "/") == strings.TrimSuffix(frontendURL, "/")
}
