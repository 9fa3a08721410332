package middleware

import (
	"net/http"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds handlers that have no limit of their own.
const DefaultRequestTimeout = 30 * time.Second

const timeoutMessage = "Request Timeout"

// PathTimeout gives requests under Prefix their own limit, such as uploads
// that parse a whole sheet before answering.
type PathTimeout struct {
	Prefix  string
	Timeout time.Duration
}

// Timeout answers 503 once a handler runs past its limit and cancels the
// request context. The first matching override wins; a non-positive
// duration falls back to timeout.
func Timeout(timeout time.Duration, overrides ...PathTimeout) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		fallback := http.TimeoutHandler(next, timeout, timeoutMessage)
		handlers := make([]http.Handler, len(overrides))
		for i, o := range overrides {
			d := o.Timeout
			if d <= 0 {
				d = timeout
			}
			handlers[i] = http.TimeoutHandler(next, d, timeoutMessage)
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for i, o := range overrides {
				if strings.HasPrefix(r.URL.Path, o.Prefix) {
					handlers[i].ServeHTTP(w, r)
					return
				}
			}
			fallback.ServeHTTP(w, r)
		})
	}
}
