package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	logpkg "github.com/benvon/tagdesk/internal/logger"
	"github.com/benvon/tagdesk/internal/request"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body sent to API callers after a recovered panic.
// It has the same shape as the handlers' error envelope.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

const panicPage = `<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8"><title>Something went wrong</title></head>
<body><h1>Something went wrong</h1><p>An unexpected error occurred. <a href="/">Go back home</a>.</p></body></html>
`

// ErrorHandler recovers panics. API callers get a JSON error, browsers a
// plain error page. http.ErrAbortHandler is re-raised for net/http.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				// The panic value stays in the log only.
				logger.Error("panic_recovered",
					zap.Any("error", v),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("method", r.Method),
				)
				writePanicResponse(w, r, logger)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func writePanicResponse(w http.ResponseWriter, r *http.Request, logger *zap.Logger) {
	if !request.WantsJSON(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(panicPage))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:     http.StatusText(http.StatusInternalServerError),
		Message:   "An unexpected error occurred",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
	if err != nil {
		logger.Error("failed_to_encode_error_response", zap.Error(err))
	}
}
