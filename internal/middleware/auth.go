package middleware

import (
	"context"
	"net/http"
	"strings"

	"chat_billing/internal/auth"
	"chat_billing/internal/utils"
)

// ContextKey is the type for request-context keys set by middleware.
type ContextKey string

// UsernameKey holds the authenticated account's username.
const UsernameKey ContextKey = "username"

// RequireAuth validates the bearer token and injects the account into
// the request context.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			username, err := auth.ParseToken(tokenString, secret)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UsernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Username extracts the authenticated username from the context.
func Username(ctx context.Context) string {
	username, _ := ctx.Value(UsernameKey).(string)
	return username
}
