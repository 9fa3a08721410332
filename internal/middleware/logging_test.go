package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/request"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		session    *models.Session
		status     int
		wantPath   string
		wantSigned bool
	}{
		{name: "page load", method: "GET", path: "/dashboard", status: http.StatusOK, wantPath: "/dashboard"},
		{
			name:       "signed in upload",
			method:     "POST",
			path:       "/api/v1/workspace/upload",
			session:    &models.Session{ID: "s1", UserID: uuid.New()},
			status:     http.StatusCreated,
			wantPath:   "/api/v1/workspace/upload",
			wantSigned: true,
		},
		{name: "anonymous session", method: "GET", path: "/missing", session: &models.Session{ID: "s2"}, status: http.StatusNotFound, wantPath: "/missing"},
		{name: "control characters stripped", method: "GET", path: "/a%1Bb", status: http.StatusOK, wantPath: "/ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.InfoLevel)
			handler := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.session != nil {
				req = req.WithContext(request.WithSession(req.Context(), tt.session))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			entries := logs.FilterMessage("http_request").All()
			require.Len(t, entries, 1)
			fields := entries[0].ContextMap()
			assert.Equal(t, tt.method, fields["method"])
			assert.Equal(t, tt.wantPath, fields["path"])
			assert.EqualValues(t, tt.status, fields["status_code"])
			assert.Equal(t, tt.wantSigned, fields["authenticated"])
		})
	}
}

func TestLogging_ImplicitStatus(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	handler := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, "ok", rec.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.EqualValues(t, http.StatusOK, logs.All()[0].ContextMap()["status_code"])
}

func TestResponseWriter_Unwrap(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	assert.Same(t, rec, rw.Unwrap())
}
