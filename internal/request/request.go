package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/tagdesk/internal/models"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionContextKey returns the context key used for the session. Exposed for tests that inject non-session values.
func SessionContextKey() contextKey { return sessionContextKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithSession returns a context with the session attached.
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext returns the session from the request context, or nil if missing or wrong type.
func SessionFromContext(r *http.Request) *models.Session {
	s, _ := r.Context().Value(sessionContextKey).(*models.Session)
	return s
}

// Authenticated reports whether the request carries a signed-in session.
func Authenticated(r *http.Request) bool {
	return SessionFromContext(r).Authenticated()
}

// WantsJSON reports whether the caller is an API client rather than a browser
// page load: any /api/ path, or an Accept header preferring JSON.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
