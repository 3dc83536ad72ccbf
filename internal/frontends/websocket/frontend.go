// Package websocket is the WebSocket transport of the gateway: it upgrades
// clients on the endpoint path and feeds their frames to a gateway.Gateway.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	customerrors "github.com/actual-software/socket-gateway/internal/errors"
	"github.com/actual-software/socket-gateway/internal/gateway"
	"github.com/actual-software/socket-gateway/internal/ids"
	"github.com/actual-software/socket-gateway/internal/logging"
	"github.com/actual-software/socket-gateway/internal/metrics"
)

// wsHandlerCount is the number of goroutines per connection: read and write.
const wsHandlerCount = 2

// Frontend implements the WebSocket transport.
type Frontend struct {
	config  Config
	gateway *gateway.Gateway
	logger  *zap.Logger
	metrics *metrics.Registry

	mux      *http.ServeMux
	upgrader websocket.Upgrader

	connections map[string]*ClientConnection
	connMu      sync.RWMutex
	connCount   atomic.Int64

	stopping atomic.Bool
	wg       sync.WaitGroup
}

// CreateWebSocketFrontend creates a new WebSocket frontend feeding gw.
func CreateWebSocketFrontend(
	cfg Config,
	gw *gateway.Gateway,
	m *metrics.Registry,
	logger *zap.Logger,
) *Frontend {
	cfg.ApplyDefaults()

	f := &Frontend{
		config:      cfg,
		gateway:     gw,
		logger:      logger.With(zap.String("protocol", "websocket")),
		metrics:     m,
		mux:         http.NewServeMux(),
		connections: make(map[string]*ClientConnection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    defaultReadBufferSize,
			WriteBufferSize:   defaultWriteBufferSize,
			EnableCompression: cfg.Compression,
			CheckOrigin:       makeOriginChecker(cfg.AllowedOrigins),
		},
	}

	f.mux.HandleFunc(cfg.Path, f.handleWebSocketUpgrade)

	return f
}

// Handler returns the HTTP handler serving the endpoint path.
func (f *Frontend) Handler() http.Handler {
	return f.mux
}

// ConnectionCount returns the number of upgraded connections still attached.
func (f *Frontend) ConnectionCount() int64 {
	return f.connCount.Load()
}

// handleWebSocketUpgrade handles WebSocket upgrade requests.
func (f *Frontend) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	// Patterns ending in "/" match a whole subtree; only the endpoint itself upgrades.
	if r.URL.Path != f.config.Path {
		http.NotFound(w, r)

		return
	}

	if err := f.checkConnectionLimits(); err != nil {
		logging.LogError(r.Context(), f.logger, "Refusing connection", err,
			zap.String("remote_addr", r.RemoteAddr))
		customerrors.RecordError(err, f.metrics)
		f.metrics.IncrementConnectionsRejected()

		http.Error(w, err.Message, err.HTTPStatus)

		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		f.logger.Debug("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		f.metrics.IncrementConnectionsRejected()

		return
	}

	if f.config.Compression {
		conn.EnableWriteCompression(true)
	}

	f.setupAndRegisterConnection(conn)
}

// checkConnectionLimits enforces max connections and refuses upgrades while stopping.
func (f *Frontend) checkConnectionLimits() *customerrors.GatewayError {
	if f.stopping.Load() {
		return customerrors.New(customerrors.TypeUnavailable, "server is shutting down").
			WithComponent("frontend").
			WithHTTPStatus(http.StatusServiceUnavailable)
	}

	if f.config.MaxConnections <= 0 {
		return nil
	}

	current := f.connCount.Load()
	if current >= int64(f.config.MaxConnections) {
		return customerrors.NewMaxConnectionsError(current, f.config.MaxConnections)
	}

	return nil
}

func (f *Frontend) setupAndRegisterConnection(conn *websocket.Conn) {
	id := ids.NewConnectionID()
	client := newClientConnection(id, conn, &f.config,
		f.logger.With(zap.String("connection_id", id), zap.String("remote_addr", conn.RemoteAddr().String())))

	link, err := f.gateway.Open(client)
	if err != nil {
		client.logger.Debug("Gateway refused connection", zap.Error(err))
		client.Close()

		return
	}

	client.link = link

	f.connMu.Lock()
	if f.stopping.Load() {
		f.connMu.Unlock()
		client.Close()
		link.HandleClose()

		return
	}

	f.connections[id] = client
	f.connCount.Add(1)
	f.wg.Add(wsHandlerCount)
	f.connMu.Unlock()

	go func() {
		defer f.wg.Done()
		client.writePump()
	}()

	go func() {
		defer f.wg.Done()
		defer f.removeConnection(id)
		client.readPump()
	}()
}

func (f *Frontend) removeConnection(id string) {
	f.connMu.Lock()
	_, exists := f.connections[id]
	delete(f.connections, id)
	f.connMu.Unlock()

	if exists {
		f.connCount.Add(-1)
	}
}

// Stop refuses new upgrades, closes every connection and waits until each has
// delivered its close event.
func (f *Frontend) Stop(ctx context.Context) error {
	f.connMu.Lock()
	f.stopping.Store(true)

	clients := make([]*ClientConnection, 0, len(f.connections))
	for _, client := range f.connections {
		clients = append(clients, client)
	}
	f.connMu.Unlock()

	for _, client := range clients {
		client.Close()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	select {
	case <-done:
		f.logger.Info("WebSocket frontend stopped", zap.Int("closed_connections", len(clients)))

		return nil
	case <-ctx.Done():
		f.logger.Warn("WebSocket frontend shutdown timeout")

		return customerrors.WrapShutdownError(ctx, ctx.Err())
	}
}

// makeOriginChecker creates an origin checker function.
func makeOriginChecker(allowedOrigins []string) func(*http.Request) bool {
	if len(allowedOrigins) == 0 {
		return func(r *http.Request) bool { return true }
	}

	originMap := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originMap[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		return originMap["*"] || originMap[origin]
	}
}
