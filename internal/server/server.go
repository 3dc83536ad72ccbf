package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/config"
	customerrors "github.com/actual-software/socket-gateway/internal/errors"
	"github.com/actual-software/socket-gateway/internal/frontends/websocket"
	"github.com/actual-software/socket-gateway/internal/gateway"
	"github.com/actual-software/socket-gateway/internal/logging"
	"github.com/actual-software/socket-gateway/internal/metrics"
	"github.com/actual-software/socket-gateway/internal/registry"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleHTTPTimeout   = 120 * time.Second
)

// GatewayServer binds the configured address and serves the WebSocket endpoint.
type GatewayServer struct {
	config   *config.Config
	logger   *zap.Logger
	metrics  *metrics.Registry
	registry registry.Registry

	gateway    *gateway.Gateway
	frontend   *websocket.Frontend
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	served   chan error
}

// BootstrapGatewayServer creates the gateway, its event loops and the WebSocket
// frontend. Nothing is bound until Start.
func BootstrapGatewayServer(
	cfg *config.Config,
	reg registry.Registry,
	m *metrics.Registry,
	tracer trace.Tracer,
	logger *zap.Logger,
) (*GatewayServer, error) {
	verbosity, err := logging.ParseVerbosity(cfg.Endpoint.Verbosity)
	if err != nil {
		return nil, customerrors.WrapWithType(err, customerrors.TypeValidation, "invalid verbosity").
			WithComponent("server")
	}

	policy, err := gateway.ParseFailurePolicy(cfg.Endpoint.OnUnexpectedFailure)
	if err != nil {
		return nil, customerrors.WrapWithType(err, customerrors.TypeValidation, "invalid failure policy").
			WithComponent("server")
	}

	if m == nil {
		m = metrics.InitializeMetricsRegistry()
	}

	gw := gateway.New(reg, logger, gateway.Options{
		Verbosity:           verbosity,
		Workers:             cfg.Endpoint.Workers,
		OnUnexpectedFailure: policy,
		Metrics:             m,
		Tracer:              tracer,
	})

	frontend := websocket.CreateWebSocketFrontend(websocket.ConfigFromEndpoint(cfg.Endpoint), gw, m, logger)

	s := &GatewayServer{
		config:   cfg,
		logger:   logger,
		metrics:  m,
		registry: reg,
		gateway:  gw,
		frontend: frontend,
		httpServer: &http.Server{
			Handler:           frontend.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleHTTPTimeout,
			ErrorLog:          zap.NewStdLog(logger.Named("http")),
		},
	}

	logger.Info("Gateway server created",
		zap.String("path", cfg.Endpoint.Path),
		zap.String("verbosity", verbosity.String()),
		zap.String("on_unexpected_failure", policy.String()),
		zap.Int("workers", cfg.Endpoint.Workers),
		zap.Bool("tls", cfg.Server.TLS.Enabled()))

	return s, nil
}

// Start binds host:port and begins accepting connections. The returned channel
// yields exactly one value, nil once the listener is bound or an error naming
// host and port, and is then closed.
func (s *GatewayServer) Start(ctx context.Context) <-chan error {
	result := make(chan error, 1)

	go func() {
		defer close(result)

		result <- s.listenAndServe(ctx)
	}()

	return result
}

func (s *GatewayServer) listenAndServe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	host, port := s.config.Server.Host, s.config.Server.Port
	address := net.JoinHostPort(host, strconv.Itoa(port))

	if s.listener != nil {
		return customerrors.NewAlreadyStartedError(address)
	}

	var tlsConfig *tls.Config

	if s.config.Server.TLS.Enabled() {
		var err error

		tlsConfig, err = createTLSConfig(&s.config.Server.TLS)
		if err != nil {
			return customerrors.WrapTLSConfigError(ctx, err, s.config.Server.TLS.CertFile, s.config.Server.TLS.KeyFile)
		}
	}

	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		s.metrics.IncrementBindFailures()

		return customerrors.WrapBindError(ctx, err, host, port)
	}

	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	s.listener = ln
	s.served = make(chan error, 1)

	go s.serve(ln, s.served)

	s.logger.Info("Listening",
		zap.String("host", host),
		zap.Int("port", port),
		zap.String("address", ln.Addr().String()),
		zap.Bool("tls", tlsConfig != nil))

	return nil
}

func (s *GatewayServer) serve(ln net.Listener, served chan<- error) {
	defer close(served)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Gateway server stopped serving", zap.Error(err))
		served <- err
	}
}

// Wait blocks until a started server stops serving and returns the serve error,
// if any. It returns nil immediately when the server was never started.
func (s *GatewayServer) Wait() error {
	s.mu.Lock()
	served := s.served
	s.mu.Unlock()

	if served == nil {
		return nil
	}

	return <-served
}

// Addr returns the bound address, or nil before a successful Start.
func (s *GatewayServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// ConnectionCount returns the number of open connections.
func (s *GatewayServer) ConnectionCount() int64 {
	return s.gateway.ConnectionCount()
}

// Stats returns the diagnostics document served on /stats.
func (s *GatewayServer) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"connections": s.gateway.ConnectionCount(),
	}

	provider, ok := s.registry.(registry.StatsProvider)
	if !ok {
		return stats
	}

	registryStats, err := provider.Stats(ctx)
	if err != nil {
		s.logger.Warn("Registry stats unavailable", logging.WithError(err)...)
		stats["registry_error"] = err.Error()

		return stats
	}

	stats["registry"] = registryStats

	return stats
}

// Shutdown stops accepting, closes every open connection and stops the event
// loops. Each connection runs its normal close path, so the registry sees one
// disconnect per bound peer, including connections that finish closing after ctx
// expired.
func (s *GatewayServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down gateway server")

	var shutdownErr error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		shutdownErr = customerrors.WrapShutdownError(ctx, err)
	}

	if err := s.frontend.Stop(ctx); err != nil && shutdownErr == nil {
		shutdownErr = err
	}

	s.gateway.Stop()

	if shutdownErr != nil {
		s.logger.Warn("Gateway server shutdown incomplete", logging.WithError(shutdownErr)...)

		return shutdownErr
	}

	s.logger.Info("Gateway server shutdown completed")

	return nil
}

func createTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	minVersion := uint16(tls.VersionTLS12)
	if cfg.MinVersion == "TLS1.3" {
		minVersion = tls.VersionTLS13
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}, nil
}
