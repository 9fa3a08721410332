package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler_PassThrough(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	handler := ErrorHandler(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/dashboard", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, logs.Len())
}

func TestErrorHandler_Recovers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		path      string
		accept    string
		panicWith func()
		wantJSON  bool
	}{
		{
			name:      "api path gets json",
			path:      "/api/v1/workspace",
			panicWith: func() { panic("workspace exploded") },
			wantJSON:  true,
		},
		{
			name:      "json accept header gets json",
			path:      "/dashboard/upload",
			accept:    "application/json",
			panicWith: func() { panic("boom") },
			wantJSON:  true,
		},
		{
			name:   "browser gets html",
			path:   "/dashboard/upload",
			accept: "text/html",
			panicWith: func() {
				var m map[string]int
				m["row"] = 1
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.ErrorLevel)
			handler := ErrorHandler(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.panicWith()
			}))

			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			require.NotPanics(t, func() { handler.ServeHTTP(rec, req) })

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, 1, logs.FilterMessage("panic_recovered").Len())
			assert.NotContains(t, rec.Body.String(), "exploded")

			if !tt.wantJSON {
				assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
				assert.Contains(t, rec.Body.String(), "Something went wrong")
				return
			}
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, "Internal Server Error", body.Error)
			assert.Equal(t, tt.path, body.Path)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}

func TestErrorHandler_RepanicsOnAbort(t *testing.T) {
	t.Parallel()

	handler := ErrorHandler(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	})
}
