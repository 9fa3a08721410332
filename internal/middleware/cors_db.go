package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// CorsConfigSource loads the stored CORS settings. A nil config means none
// has been stored.
type CorsConfigSource interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// CORSReloader wraps rs/cors and periodically reloads CORS config from the database.
type CORSReloader struct {
	repo     CorsConfigSource
	fallback string // FRONTEND_URL
	log      *zap.Logger
	interval time.Duration

	mu      sync.RWMutex
	current *cors.Cors
}

// NewCORSReloader creates a CORS middleware that loads config from the DB and hot-reloads it.
func NewCORSReloader(repo CorsConfigSource, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	r := &CORSReloader{
		repo:     repo,
		fallback: strings.TrimSpace(frontendURLFallback),
		log:      log,
		interval: reloadInterval,
	}
	r.load(context.Background())
	return r
}

// Middleware wraps next with the CORS policy current at request time.
func (r *CORSReloader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.RLock()
		c := r.current
		r.mu.RUnlock()
		if c == nil {
			next.ServeHTTP(w, req)
			return
		}
		c.Handler(next).ServeHTTP(w, req)
	})
}

// Start runs the reload loop until ctx is cancelled.
func (r *CORSReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

func (r *CORSReloader) load(ctx context.Context) {
	var cfg *models.CorsConfig
	var err error
	if r.repo != nil {
		cfg, err = r.repo.Get(ctx)
		if err != nil {
			r.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
		}
	}

	var origins []string
	allowCreds := true
	maxAge := 86400
	if err != nil || cfg == nil {
		origins = SplitOrigins(r.fallback)
	} else {
		origins = SplitOrigins(cfg.AllowedOrigins)
		allowCreds = cfg.AllowCredentials
		maxAge = cfg.MaxAge
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:8080"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
	})
	r.mu.Lock()
	r.current = c
	r.mu.Unlock()
}

// SplitOrigins splits a comma-separated origin list, trimming blanks and
// duplicates.
func SplitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
