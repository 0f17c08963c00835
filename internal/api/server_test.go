package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scdx/internal/metrics"
	"github.com/JakeFAU/scdx/internal/progress/sinks"
)

type fixedStatus struct {
	status sinks.Status
}

func (f fixedStatus) Snapshot() sinks.Status { return f.status }

func newTestServer(t *testing.T) (*Server, *metrics.Collectors) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := metrics.NewCollectors(reg)
	require.NoError(t, err)
	status := fixedStatus{status: sinks.Status{
		RunID: "r-1", Domain: "example.com", State: sinks.StateRunning, Done: 1, Total: 3, Records: 10,
	}}
	return NewServer(status, reg, c, nil), c
}

func TestServerHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServerProgress(t *testing.T) {
	t.Parallel()

	srv, c := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got sinks.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "r-1", got.RunID)
	assert.Equal(t, sinks.StateRunning, got.State)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, int64(10), got.Records)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequestsTotal.WithLabelValues("GET", "200")))
}

func TestServerProgressWithoutSource(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerMetrics(t *testing.T) {
	t.Parallel()

	srv, c := newTestServer(t)
	c.RecordsTotal.Add(3)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "scdx_records_written_total 3")
}

func TestServerStartAndShutdown(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	require.NoError(t, srv.Start("127.0.0.1:0"))

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Contains(t, string(body), "ok")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
