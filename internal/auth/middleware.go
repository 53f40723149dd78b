package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ms-checkout/internal/logger"
)

type contextKey string

const claimsKey contextKey = "admin_claims"

// AdminMiddleware rejects requests without a valid bearer token (401) and
// tokens without the admin role (403). A nil verifier rejects everything.
func AdminMiddleware(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				log.LogSecurity("ADMIN_DISABLED", fmt.Sprintf("%s %s rejected: no verifier", r.Method, r.URL.Path))
				writeError(w, http.StatusUnauthorized, ErrAuthNotConfigured.Error())
				return
			}

			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if !claims.IsAdmin() {
				log.LogSecurity("FORBIDDEN", fmt.Sprintf("%s %s by %s", r.Method, r.URL.Path, claims.Subject))
				writeError(w, http.StatusForbidden, "admin role required")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper to extract the admin subject in handlers
func Subject(ctx context.Context) string {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c.Subject
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
