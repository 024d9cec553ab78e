package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/mlexec/internal/metrics"
	"github.com/loykin/mlexec/internal/source"
)

type fixedStatus struct{ st source.Status }

func (f fixedStatus) Status() source.Status { return f.st }

func setupRouter(t *testing.T, base string, st source.Status) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(fixedStatus{st}, base).Handler()
}

func doReq(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	h := setupRouter(t, "/api/", source.Status{
		Name: "gf", State: source.Running, Pid: 1234, Restarts: 2,
		EventsRead: 10, BatchesEmitted: 3, Exited: true, LastExitCode: 137,
	})
	rec := doReq(t, h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "gf", got["name"])
	assert.Equal(t, "running", got["state"])
	assert.Equal(t, float64(1234), got["pid"])
	assert.Equal(t, float64(2), got["restarts"])
	assert.Equal(t, float64(10), got["events_read"])
	assert.Equal(t, float64(137), got["last_exit_code"])
}

func TestHealthEndpoint(t *testing.T) {
	rec := doReq(t, setupRouter(t, "", source.Status{State: source.RestartDelay}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"restart_delay"`)

	rec = doReq(t, setupRouter(t, "", source.Status{State: source.Stopped}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	require.NoError(t, metrics.Register(prometheus.DefaultRegisterer))
	metrics.IncRecord("router-test")

	rec := doReq(t, setupRouter(t, "", source.Status{}), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), `mlexec_source_records_total{source="router-test"}`))
}

func TestNilSourceAndUnknownRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRouter(nil, "/").Handler()
	assert.Equal(t, http.StatusServiceUnavailable, doReq(t, h, http.MethodGet, "/status").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doReq(t, h, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusNotFound, doReq(t, h, http.MethodGet, "/start").Code)
}

func TestSanitizeBase(t *testing.T) {
	assert.Equal(t, "", sanitizeBase(" / "))
	assert.Equal(t, "/abc", sanitizeBase("abc/"))
	assert.Equal(t, "/a/b", sanitizeBase("/a/b"))
}

func TestNewServer(t *testing.T) {
	srv := NewServer(":0", "", fixedStatus{})
	assert.Equal(t, ":0", srv.Addr)
	assert.NotNil(t, srv.Handler)
}
