package middleware

import (
	"context"
	"log/slog"
	"net/http"

	apperrors "github.com/kumanday/OmniLearn/pkg/errors"
	"github.com/kumanday/OmniLearn/pkg/httputil"
	"github.com/kumanday/OmniLearn/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "claims"

// Claims identifies the authenticated caller of a request.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Authenticator resolves the caller of r. It owns credential extraction
// (header, cookie) so the middleware stays transport-agnostic.
type Authenticator func(r *http.Request) (*Claims, error)

// Auth rejects requests the authenticator cannot resolve with a uniform 401
// and stores the resulting claims in the request context.
func Auth(authenticate Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r)
			if err != nil || claims == nil {
				httputil.WriteError(w, r, apperrors.Unauthorized("not authenticated"), nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = logger.WithUserID(ctx, claims.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", claims.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the claims stored by Auth, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// UserIDFromContext returns the authenticated user's ID or "".
func UserIDFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.UserID
	}
	return ""
}
