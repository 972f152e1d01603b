package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const headerSharedKey = "X-Shared-Key"

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":                      true,
	"/.well-known/agent-card.json": true,
	"/.well-known/agent.json":      true,
}

// SharedKey returns middleware that requires the configured key in the
// X-Shared-Key header or as an Authorization bearer token. An empty key
// disables the check.
func SharedKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get(headerSharedKey)
			if got == "" {
				got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if got == "" {
				writeAuthError(w, http.StatusUnauthorized, "authorization required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeAuthError(w, http.StatusForbidden, "invalid credentials")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
