package middleware

import (
	"net/http"
	"strings"
)

const (
	// DefaultMaxRequestSize is the default maximum request body size (1MB)
	DefaultMaxRequestSize int64 = 1 << 20 // 1MB
)

// SizeLimit overrides the body limit for paths under Prefix. With
// InHandler set, an oversized Content-Length is not answered here: the body
// is only capped, so the handler sees *http.MaxBytesError and responds.
type SizeLimit struct {
	Prefix    string
	MaxBytes  int64
	InHandler bool
}

// MaxRequestSize limits the size of request bodies to prevent DoS attacks
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return MaxRequestSizeByPath(maxBytes)
}

// MaxRequestSizeByPath is MaxRequestSize with per-prefix limits. The first
// matching prefix wins.
func MaxRequestSizeByPath(maxBytes int64, limits ...SizeLimit) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, early := maxBytes, true
			for _, l := range limits {
				if strings.HasPrefix(r.URL.Path, l.Prefix) && l.MaxBytes > 0 {
					limit, early = l.MaxBytes, !l.InHandler
					break
				}
			}

			// Check Content-Length header early if present
			if early && r.ContentLength > limit {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			// Wrap the request body with MaxBytesReader
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			defer r.Body.Close()

			next.ServeHTTP(w, r)
		})
	}
}
