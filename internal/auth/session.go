// Package auth handles credentials and sessions: bcrypt password hashing,
// signed session tokens, and the request-scoped current user.
package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey struct{}

// WithUserID stores the authenticated user in ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the authenticated user, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok && id > 0
}

// SessionProvider resolves the current user of a request.
type SessionProvider interface {
	CurrentUser(r *http.Request) (int64, error)
}

// CurrentUser reads the bearer token of r.
func (m *JWTManager) CurrentUser(r *http.Request) (int64, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return 0, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return 0, ErrInvalidToken
	}
	claims, err := m.Validate(strings.TrimSpace(token))
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

// RequireAuth rejects requests without a valid session and stores the user
// id in the request context otherwise.
func RequireAuth(sessions SessionProvider, onFail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := sessions.CurrentUser(r)
			if err != nil {
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
