package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/config"
	customerrors "github.com/actual-software/socket-gateway/internal/errors"
	"github.com/actual-software/socket-gateway/internal/metrics"
)

const (
	diagnosticsReadTimeout  = 10 * time.Second
	diagnosticsWriteTimeout = 10 * time.Second
	diagnosticsIdleTimeout  = 30 * time.Second
)

// StatsSource supplies the /stats document.
type StatsSource interface {
	Stats(ctx context.Context) map[string]interface{}
}

// DiagnosticsServer serves /metrics, /healthz and /stats on the metrics port.
type DiagnosticsServer struct {
	config config.MetricsConfig
	logger *zap.Logger

	httpServer *http.Server
	mux        *http.ServeMux

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewDiagnosticsServer creates a diagnostics server. middleware, when non-nil,
// wraps every handler.
func NewDiagnosticsServer(
	cfg config.MetricsConfig,
	m *metrics.Registry,
	stats StatsSource,
	middleware func(http.Handler) http.Handler,
	logger *zap.Logger,
) *DiagnosticsServer {
	d := &DiagnosticsServer{
		config: cfg,
		logger: logger.With(zap.String("component", "diagnostics_http_server")),
		mux:    http.NewServeMux(),
	}

	d.mux.Handle(cfg.Path, promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{}))
	d.mux.HandleFunc("/healthz", handleHealthz)
	d.mux.HandleFunc("/stats", d.statsHandler(stats))

	var handler http.Handler = d.mux
	if middleware != nil {
		handler = middleware(handler)
	}

	d.httpServer = &http.Server{
		Handler:      handler,
		ReadTimeout:  diagnosticsReadTimeout,
		WriteTimeout: diagnosticsWriteTimeout,
		IdleTimeout:  diagnosticsIdleTimeout,
	}

	return d
}

// Handler returns the diagnostics handler, middleware included.
func (d *DiagnosticsServer) Handler() http.Handler {
	return d.httpServer.Handler
}

// Start binds the metrics address and serves in the background.
func (d *DiagnosticsServer) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(d.config.Host, strconv.Itoa(d.config.Port)))
	if err != nil {
		return customerrors.WrapBindError(ctx, err, d.config.Host, d.config.Port).
			WithComponent("diagnostics")
	}

	d.listener = ln

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		d.logger.Info("Starting diagnostics HTTP server", zap.String("address", ln.Addr().String()))

		if err := d.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("Diagnostics HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (d *DiagnosticsServer) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.listener == nil {
		return nil
	}

	return d.listener.Addr()
}

// Stop gracefully stops the diagnostics server.
func (d *DiagnosticsServer) Stop(ctx context.Context) error {
	if err := d.httpServer.Shutdown(ctx); err != nil {
		d.logger.Warn("Diagnostics HTTP server shutdown error", zap.Error(err))

		return customerrors.WrapShutdownError(ctx, err).WithComponent("diagnostics")
	}

	d.wg.Wait()
	d.logger.Info("Diagnostics HTTP server stopped")

	return nil
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (d *DiagnosticsServer) statsHandler(stats StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := sonic.ConfigStd.Marshal(stats.Stats(r.Context()))
		if err != nil {
			d.logger.Error("Failed to encode stats", zap.Error(err))
			http.Error(w, "failed to encode stats", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
