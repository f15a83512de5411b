package router

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietRouter() *Router {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func echo(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, name+":"+strings.Join(Params(r), ","))
	}
}

func TestExactAndWildcardRoutes(t *testing.T) {
	r := quietRouter()
	r.GET("/api/v1/jobs", echo("list"))
	r.POST("/api/v1/jobs/*/start", echo("start"))
	r.GET("/api/v1/jobs/*/progress", echo("progress"))
	r.GET("/api/v1/jobs/*", echo("get"))
	r.GET("/api/v1/download/*/*", echo("download"))

	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/jobs", "list:"},
		{http.MethodPost, "/api/v1/jobs/j1/start", "start:j1"},
		{http.MethodGet, "/api/v1/jobs/j1/progress", "progress:j1"},
		{http.MethodGet, "/api/v1/jobs/j1", "get:j1"},
		{http.MethodGet, "/api/v1/download/j1/review.csv", "download:j1,review.csv"},
	}
	for _, tt := range tests {
		rec := serve(r, tt.method, tt.path)
		assert.Equal(t, http.StatusOK, rec.Code, tt.path)
		assert.Equal(t, tt.want, rec.Body.String(), tt.path)
	}
}

func TestWildcardsFollowRegistrationOrder(t *testing.T) {
	r := quietRouter()
	r.GET("/files/*", echo("catch-all"))
	r.GET("/files/*/meta", echo("meta"))

	// the earlier catch-all wins every time
	for range 20 {
		assert.Equal(t, "catch-all:a/meta", serve(r, http.MethodGet, "/files/a/meta").Body.String())
	}
}

func TestMethodNotAllowedAndNotFound(t *testing.T) {
	r := quietRouter()
	r.GET("/api/v1/jobs", echo("list"))
	r.POST("/api/v1/jobs/*/pause", echo("pause"))

	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodDelete, "/api/v1/jobs").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodGet, "/api/v1/jobs/j1/pause").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/nope").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPost, "/api/v1/jobs//pause").Code)
}

func TestParamOutOfRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", Param(req, 0))
}

func TestRequestsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	r := New(slog.New(slog.NewJSONHandler(&buf, nil)))
	r.GET("/ok", echo("ok"))

	serve(r, http.MethodGet, "/ok")
	serve(r, http.MethodGet, "/missing")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"INFO"`)
	assert.Contains(t, lines[0], `"status":200`)
	assert.Contains(t, lines[1], `"level":"WARN"`)
	assert.Contains(t, lines[1], `"status":404`)
}

func TestHandleMountsHTTPHandler(t *testing.T) {
	r := quietRouter()
	r.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "metrics")
	}))
	assert.Equal(t, "metrics", serve(r, http.MethodGet, "/metrics").Body.String())
}
