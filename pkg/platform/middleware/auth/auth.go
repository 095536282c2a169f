package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"certflow/pkg/domain"
	"certflow/pkg/requestcontext"
)

// Identity is the authenticated caller as the middleware sees it.
type Identity struct {
	UserID domain.UserID
	Role   domain.Role
}

// Authenticator resolves a bearer token into an identity. Implementations
// must reject expired, malformed, and revoked tokens.
type Authenticator interface {
	Identify(ctx context.Context, token string) (Identity, error)
}

// writeJSONError writes a JSON error response with the given status code and
// error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func RequireAuth(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			ctx := r.Context()
			identity, err := authenticator.Identify(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithUserID(ctx, identity.UserID)
			ctx = requestcontext.WithRole(ctx, identity.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the listed roles only. Must run after RequireAuth.
func RequireRole(logger *slog.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := requestcontext.Role(ctx)
			if !allowed[role] {
				logger.WarnContext(ctx, "forbidden - role not allowed",
					"role", role.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
