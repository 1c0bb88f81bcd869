// Package requestctx carries the caller's user id through request contexts.
package requestctx

import (
	"context"
	"net/http"
	"strings"
)

// HeaderUserID names the header that scopes API calls to a user.
const HeaderUserID = "X-User-ID"

const maxUserIDLength = 128

type userIDKey struct{}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the user id stored in ctx.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// FromRequest reads and trims the user header. Ids with control characters
// or longer than 128 bytes are rejected.
func FromRequest(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" || len(id) > maxUserIDLength {
		return "", false
	}
	if strings.ContainsFunc(id, func(c rune) bool { return c < 0x20 || c == 0x7f }) {
		return "", false
	}
	return id, true
}

// Middleware stores the header user id in the request context. Requests
// without one are passed to onMissing.
func Middleware(onMissing func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromRequest(r)
			if !ok {
				if onMissing != nil {
					onMissing(w, r)
				} else {
					http.Error(w, "missing "+HeaderUserID+" header", http.StatusBadRequest)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
		})
	}
}
