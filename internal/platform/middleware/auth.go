package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"civreg/internal/policy"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

// JWTValidator checks a bearer token and returns its staff claims.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is the subset of token claims the API trusts.
type JWTClaims struct {
	UserID string
	Role   string
}

const invalidToken = "Invalid or expired token"

// RequireAuth validates the bearer token and puts the acting staff member in
// the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reject := func(reason, description string, err error) {
				logger.WarnContext(ctx, "unauthorized: "+reason,
					"error", err,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, description))
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				reject("missing token", "Missing or invalid Authorization header", nil)
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				reject("invalid token", invalidToken, err)
				return
			}
			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				reject("bad subject", invalidToken, err)
				return
			}

			ctx = requestcontext.WithActor(ctx, requestcontext.Actor{UserID: userID, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets the request through only when the authenticated role is
// one of allowed. It must run after RequireAuth.
func RequireRole(logger *slog.Logger, allowed ...policy.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := requestcontext.Role(ctx)
			if !policy.Allows(role, allowed) {
				logger.WarnContext(ctx, "forbidden - role not allowed",
					"role", role,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "role "+role+" may not perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
