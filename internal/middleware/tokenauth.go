// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/atinyakov/doafavor/internal/token"
)

type ctxKey string

const userKey ctxKey = "user"

// SessionParser verifies session tokens issued by the identity emulator.
type SessionParser interface {
	ParseSession(raw string) (*token.SessionClaims, error)
}

// TokenAuth is a middleware that requires a valid bearer session token.
//
// On success the token's subject is stored in the request context and can be
// read downstream with GetUserIDFromContext.
func TokenAuth(sessions SessionParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := sessions.ParseSession(raw)
			if err != nil {
				http.Error(w, "invalid session token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}

// WithUserID returns a copy of ctx carrying uid as the authenticated user.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userKey, uid)
}

// GetUserIDFromContext extracts the authenticated uid from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userKey).(string); ok {
		return s
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	return raw, raw != ""
}
