package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	logpkg "github.com/benvon/tagdesk/internal/logger"
	"github.com/benvon/tagdesk/internal/request"
	"github.com/benvon/tagdesk/internal/session"
	"go.uber.org/zap"
)

// DefaultProtectedPrefixes are the path prefixes that require a signed-in
// session.
var DefaultProtectedPrefixes = []string{"/dashboard", "/api/v1/workspace"}

// Sessions loads the caller's session into the request context. A visitor
// without a valid cookie gets a fresh anonymous session; it is only stored
// once a handler commits it.
func Sessions(manager *session.Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := manager.Load(r)
			if err != nil {
				logger.Error("failed_to_load_session",
					zap.Error(err),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				)
			}
			next.ServeHTTP(w, r.WithContext(request.WithSession(r.Context(), sess)))
		})
	}
}

// RouteGuard keeps unauthenticated callers out of protected paths. Browsers
// are redirected to signInPath; API callers get a 401 JSON error. Must run
// after Sessions.
func RouteGuard(protectedPrefixes []string, signInPath string) func(http.Handler) http.Handler {
	prefixes := make([]string, 0, len(protectedPrefixes))
	for _, p := range protectedPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isProtected(r.URL.Path, prefixes) || request.Authenticated(r) {
				next.ServeHTTP(w, r)
				return
			}
			if request.WantsJSON(r) {
				respondError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			http.Redirect(w, r, signInPath, http.StatusFound)
		})
	}
}

// isProtected is a plain string prefix match, so /dashboard also covers
// /dashboards and /dashboard/up covers /dashboard/upload.
func isProtected(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// respondError writes the same error envelope the handlers use.
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     http.StatusText(status),
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	_ = json.NewEncoder(w).Encode(response)
}
