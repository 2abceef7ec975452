package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/abgdnv/sweetshop/pkg/web"
)

// Authenticate verifies the bearer token of every request and stores the Principal in the context.
// Requests without a valid token get 401.
func Authenticate(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				web.RespondError(w, logger, http.StatusUnauthorized, "Authorization header is required")
				return
			}
			tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || tokenString == "" {
				web.RespondError(w, logger, http.StatusUnauthorized, "Bearer token is required")
				return
			}

			token, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", "error", err)
				web.RespondError(w, logger, http.StatusUnauthorized, "Invalid token")
				return
			}
			principal, ok := PrincipalFromToken(token)
			if !ok {
				web.RespondError(w, logger, http.StatusUnauthorized, "no claim `sub`")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRole rejects requests whose principal lacks role with 403.
// It must run after Authenticate.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				web.RespondError(w, logger, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !principal.HasRole(role) {
				logger.WarnContext(r.Context(), "role required", "subject", principal.Subject, "role", role)
				web.RespondError(w, logger, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
