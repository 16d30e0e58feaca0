package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	userIDKey contextKey = "user_id"

	userIDHeader = "X-User-ID"
)

// Identity binds the user identity asserted by the trusted auth gateway in
// front of this service. Requests without the header pass through anonymous;
// handlers that require a user reject them.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(userIDHeader))
		if uid == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user ID, or empty when anonymous.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}
