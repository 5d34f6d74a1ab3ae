package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type userIDContextKey struct{}

// UserIDKey holds the authenticated user id in the request context.
var UserIDKey = userIDContextKey{}

// Identity extracts the user id the gateway attaches to every authenticated
// request. Authentication itself happens upstream; requests arriving without
// a valid id never reach a handler.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		id, err := uuid.Parse(raw)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing or invalid user identity"}`))
			return
		}
		ctx := context.WithValue(r.Context(), UserIDKey, id.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user id, or "" when the request
// did not pass through Identity.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
