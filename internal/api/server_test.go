package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stashy/stashy/internal/engine"
	"github.com/stashy/stashy/internal/metrics"
)

type fakeStats struct {
	stats engine.QueueStats
	err   error
}

func (f *fakeStats) Stats(context.Context) (engine.QueueStats, error) {
	return f.stats, f.err
}

func doRequest(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeStats{}, zap.NewNop())
	rec := doRequest(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzReflectsStoreHealth(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeStats{}, zap.NewNop())
	require.Equal(t, http.StatusOK, doRequest(t, srv, "/readyz").Code)

	srv = NewServer(&fakeStats{err: errors.New("connection refused")}, zap.NewNop())
	require.Equal(t, http.StatusServiceUnavailable, doRequest(t, srv, "/readyz").Code)
}

func TestQueueStats(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeStats{stats: engine.QueueStats{
		Pending: 5, Claimed: 2, Done: 9, Failed: 1,
	}}, zap.NewNop())

	rec := doRequest(t, srv, "/v1/queue")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, int64(5), payload["pending"])
	require.Equal(t, int64(2), payload["claimed"])
	require.Equal(t, int64(9), payload["done"])
	require.Equal(t, int64(1), payload["failed"])
	require.Equal(t, int64(17), payload["total"])
}

func TestQueueStatsError(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeStats{err: errors.New("boom")}, zap.NewNop())
	require.Equal(t, http.StatusInternalServerError, doRequest(t, srv, "/v1/queue").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics.Init()
	srv := NewServer(&fakeStats{}, zap.NewNop())
	rec := doRequest(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
}
