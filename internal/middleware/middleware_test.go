package middleware

import (
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{"get without header", http.MethodGet, "", "", http.StatusOK},
		{"json post", http.MethodPost, "application/json; charset=utf-8", `{"tag":"a"}`, http.StatusOK},
		{"form post", http.MethodPost, "application/x-www-form-urlencoded", "tag=a", http.StatusOK},
		{"multipart post", http.MethodPost, "multipart/form-data; boundary=xyz", "--xyz--", http.StatusOK},
		{"empty post", http.MethodPost, "", "", http.StatusOK},
		{"missing header", http.MethodPost, "", "tag=a", http.StatusBadRequest},
		{"xml post", http.MethodPost, "application/xml", "<a/>", http.StatusUnsupportedMediaType},
		{"malformed header", http.MethodPost, "multipart/", "x", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/dashboard/upload", strings.NewReader(tt.body))
			if tt.body == "" {
				req.ContentLength = 0
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			ContentType(okHandler()).ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	h := SecurityHeaders(true)(okHandler())

	page := httptest.NewRecorder()
	h.ServeHTTP(page, httptest.NewRequest(http.MethodGet, "/dashboard/upload", nil))
	if got := page.Header().Get("Content-Security-Policy"); got != pageCSP {
		t.Errorf("page CSP = %q", got)
	}
	if page.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP request")
	}

	api := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspace", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(api, req)
	if got := api.Header().Get("Content-Security-Policy"); got != apiCSP {
		t.Errorf("api CSP = %q", got)
	}
	if api.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing on TLS request")
	}
	if api.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options missing")
	}
}

func TestMaxRequestSize(t *testing.T) {
	t.Parallel()

	h := MaxRequestSize(4)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestMaxRequestSizeByPath(t *testing.T) {
	t.Parallel()

	h := MaxRequestSizeByPath(4, SizeLimit{Prefix: "/dashboard/upload", MaxBytes: 64})(okHandler())

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"default limit", "/signin", "too long", http.StatusRequestEntityTooLarge},
		{"raised limit", "/dashboard/upload", "too long", http.StatusOK},
		{"raised limit exceeded", "/dashboard/upload", strings.Repeat("x", 65), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestMaxRequestSizeByPath_InHandler(t *testing.T) {
	t.Parallel()

	var handlerErr error
	h := MaxRequestSizeByPath(4, SizeLimit{Prefix: "/dashboard/upload", MaxBytes: 8, InHandler: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, handlerErr = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusSeeOther)
		}))

	req := httptest.NewRequest(http.MethodPost, "/dashboard/upload", strings.NewReader(strings.Repeat("x", 32)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want the handler's 303", w.Code)
	}
	var maxBytesErr *http.MaxBytesError
	if !errors.As(handlerErr, &maxBytesErr) || maxBytesErr.Limit != 8 {
		t.Errorf("handler read error = %v, want *http.MaxBytesError with limit 8", handlerErr)
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(200 * time.Millisecond):
			w.WriteHeader(http.StatusOK)
		}
	})
	h := Timeout(20*time.Millisecond, PathTimeout{Prefix: "/dashboard/upload", Timeout: 2 * time.Second})(slow)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/", http.StatusServiceUnavailable},
		{"/dashboard", http.StatusServiceUnavailable},
		{"/dashboard/upload", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
