package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/config"
	"github.com/actual-software/socket-gateway/internal/metrics"
)

type staticStats map[string]interface{}

func (s staticStats) Stats(context.Context) map[string]interface{} {
	return s
}

func TestDiagnosticsHandlers(t *testing.T) {
	m := metrics.InitializeMetricsRegistry()
	m.IncrementConnections()

	cfg := config.Default().Metrics
	d := NewDiagnosticsServer(cfg, m, staticStats{"connections": 1}, nil, zap.NewNop())

	tests := []struct {
		name         string
		path         string
		wantStatus   int
		wantContains string
		wantJSON     string
	}{
		{name: "healthz", path: "/healthz", wantStatus: http.StatusOK, wantContains: "OK"},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK, wantContains: "socket_gateway_connections_total 1"},
		{name: "stats", path: "/stats", wantStatus: http.StatusOK, wantJSON: `{"connections":1}`},
		{name: "unknown", path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantContains != "" {
				assert.Contains(t, rec.Body.String(), tt.wantContains)
			}

			if tt.wantJSON != "" {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.JSONEq(t, tt.wantJSON, rec.Body.String())
			}
		})
	}
}

func TestDiagnosticsMiddleware(t *testing.T) {
	var wrapped int

	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped++
			next.ServeHTTP(w, r)
		})
	}

	d := NewDiagnosticsServer(config.Default().Metrics, metrics.InitializeMetricsRegistry(),
		staticStats{}, middleware, zap.NewNop())

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, wrapped)
}

func TestDiagnosticsStartStop(t *testing.T) {
	cfg := config.Default().Metrics
	cfg.Host = "127.0.0.1"
	cfg.Port = 0

	d := NewDiagnosticsServer(cfg, metrics.InitializeMetricsRegistry(), staticStats{}, nil, zap.NewNop())
	require.NoError(t, d.Start(context.Background()))
	require.NotNil(t, d.Addr())

	resp, err := http.Get("http://" + d.Addr().String() + "/healthz")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	require.NoError(t, d.Stop(ctx))
}
