package session

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/inpetum/identity/internal/platform/httpx"
)

// Middleware authenticates requests via the Authorization bearer header
// and installs the resolved principal into the request context.
// Expired and revoked tokens produce the same response body.
func Middleware(manager *Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}
			principal, err := manager.Validate(r.Context(), token)
			if err != nil {
				if logger != nil {
					logger.Debug("token rejected", slog.String("reason", err.Error()))
				}
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
