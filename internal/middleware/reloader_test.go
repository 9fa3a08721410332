package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/benvon/tagdesk/internal/models"
	"go.uber.org/zap"
)

type fakeRatelimitRepo struct {
	mu   sync.Mutex
	cfg  *models.RatelimitConfig
	err  error
	sets int
}

func (f *fakeRatelimitRepo) Get(context.Context) (*models.RatelimitConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, f.err
}

func (f *fakeRatelimitRepo) Set(_ context.Context, c *models.RatelimitConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = c
	f.sets++
	return nil
}

func TestRateLimitReloader_SavesDefaultAndLimits(t *testing.T) {
	t.Parallel()

	repo := &fakeRatelimitRepo{}
	rl, err := NewRateLimitReloader(nil, repo, "2-M", zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("NewRateLimitReloader() error = %v", err)
	}
	if repo.sets != 1 || repo.cfg.Rate != "2-M" {
		t.Fatalf("default rate not stored: %+v", repo.cfg)
	}

	h := rl.Middleware(okHandler())
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/signin", nil)
		req.RemoteAddr = "10.1.1.1:1234"
		req.Header.Set("X-Real-IP", "10.1.1.1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func TestRateLimitReloader_ReloadPicksUpNewRate(t *testing.T) {
	t.Parallel()

	repo := &fakeRatelimitRepo{cfg: &models.RatelimitConfig{Rate: "1-M"}}
	rl, err := NewRateLimitReloader(nil, repo, "", zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("NewRateLimitReloader() error = %v", err)
	}
	if rl.Rate() != "1-M" {
		t.Fatalf("Rate() = %q, want 1-M", rl.Rate())
	}

	repo.mu.Lock()
	repo.cfg = &models.RatelimitConfig{Rate: "bogus"}
	repo.mu.Unlock()
	rl.load(context.Background())
	if rl.Rate() != DefaultRateLimit {
		t.Errorf("Rate() after bad config = %q, want %q", rl.Rate(), DefaultRateLimit)
	}
}

func TestRateLimitReloader_DBErrorUsesDefault(t *testing.T) {
	t.Parallel()

	repo := &fakeRatelimitRepo{err: errors.New("db down")}
	rl, err := NewRateLimitReloader(nil, repo, "10-S", zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("NewRateLimitReloader() error = %v", err)
	}
	if rl.Rate() != "10-S" || repo.sets != 0 {
		t.Errorf("Rate() = %q sets = %d, want 10-S and no save", rl.Rate(), repo.sets)
	}
}

type fakeCorsRepo struct {
	cfg *models.CorsConfig
	err error
}

func (f fakeCorsRepo) Get(context.Context) (*models.CorsConfig, error) { return f.cfg, f.err }

func TestCORSReloader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		repo    fakeCorsRepo
		origin  string
		allowed bool
	}{
		{"db origin", fakeCorsRepo{cfg: &models.CorsConfig{AllowedOrigins: "https://a.example.com", MaxAge: 60}}, "https://a.example.com", true},
		{"db rejects other", fakeCorsRepo{cfg: &models.CorsConfig{AllowedOrigins: "https://a.example.com"}}, "https://evil.example.com", false},
		{"fallback on missing config", fakeCorsRepo{}, "https://app.example.com", true},
		{"fallback on error", fakeCorsRepo{err: errors.New("down")}, "https://app.example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewCORSReloader(tt.repo, "https://app.example.com", zap.NewNop(), 0)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/workspace", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			c.Middleware(okHandler()).ServeHTTP(w, req)
			got := w.Header().Get("Access-Control-Allow-Origin") == tt.origin
			if got != tt.allowed {
				t.Errorf("allowed = %v, want %v", got, tt.allowed)
			}
		})
	}
}

func TestSplitOrigins(t *testing.T) {
	t.Parallel()
	got := SplitOrigins(" a , b,a,, c ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("SplitOrigins() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitOrigins()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
