package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hospitalms/patient-portal/internal/session"
)

type contextKey string

const (
	sessionKey contextKey = "portalSession"
	tokenKey   contextKey = "portalToken"
)

// SessionCookie carries the token for browser clients that cannot set headers,
// such as the websocket upgrade.
const SessionCookie = "portal_session"

// SessionResolver turns a bearer token into a live session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// SessionAuth requires a valid portal session token on every request.
func SessionAuth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			sess, err := resolver.Resolve(r.Context(), token)
			if err != nil || sess == nil {
				http.Error(w, "invalid session", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// SessionFromContext returns the authenticated session if present.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*session.Session)
	return sess, ok && sess != nil
}

// TokenFromContext returns the raw token the session was resolved from.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}

// WithSession stores sess in ctx. Handlers use it in tests.
func WithSession(ctx context.Context, sess *session.Session, token string) context.Context {
	ctx = context.WithValue(ctx, sessionKey, sess)
	return context.WithValue(ctx, tokenKey, token)
}
