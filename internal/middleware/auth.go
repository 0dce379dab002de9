// Package middleware provides the HTTP middleware for the form endpoints:
// bearer-token auth and request logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/calejo/formgate/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// LoginKey is the context key for storing the authenticated login name.
	LoginKey contextKey = "login"
)

// GetUserID extracts the user ID from the context.
// Returns zero if not found.
func GetUserID(ctx context.Context) int64 {
	userID, _ := ctx.Value(UserIDKey).(int64)
	return userID
}

// GetLogin extracts the login name from the context.
// Returns empty string if not found.
func GetLogin(ctx context.Context) string {
	login, _ := ctx.Value(LoginKey).(string)
	return login
}

// RequireAuth wraps next so it only runs for requests carrying a valid
// bearer token. The operator's id and login are added to the request
// context for handlers downstream.
func RequireAuth(jwtManager *auth.JWTManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, auth.ErrMissingToken.Error(), http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, auth.ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			http.Error(w, auth.ErrInvalidToken.Error(), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, LoginKey, claims.Login)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
