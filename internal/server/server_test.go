package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/codec"
	"github.com/actual-software/socket-gateway/internal/config"
	customerrors "github.com/actual-software/socket-gateway/internal/errors"
	"github.com/actual-software/socket-gateway/internal/metrics"
	"github.com/actual-software/socket-gateway/internal/peer"
	"github.com/actual-software/socket-gateway/internal/registry"
)

const (
	testTimeout  = 5 * time.Second
	testInterval = 10 * time.Millisecond
)

type pingRegistry struct {
	mu          sync.Mutex
	disconnects int
}

func (r *pingRegistry) ProcessMessage(_ context.Context, msg codec.Message, p *peer.Peer) *registry.Failure {
	if action, _ := msg.String("action"); action == "ping" {
		p.Send(codec.Message{"action": "pong"})
	}

	return nil
}

func (r *pingRegistry) DisconnectPeer(context.Context, *peer.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disconnects++
}

func (r *pingRegistry) Stats(context.Context) (map[string]interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[string]interface{}{"disconnects": r.disconnects}, nil
}

func (r *pingRegistry) disconnectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.disconnects
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*GatewayServer, *pingRegistry, *metrics.Registry) {
	t.Helper()

	reg := &pingRegistry{}
	m := metrics.InitializeMetricsRegistry()

	s, err := BootstrapGatewayServer(cfg, reg, m, nil, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		_ = s.Shutdown(ctx)
	})

	return s, reg, m
}

func awaitStart(t *testing.T, result <-chan error) error {
	t.Helper()

	select {
	case err, ok := <-result:
		require.True(t, ok, "start resolved without a value")

		return err
	case <-time.After(testTimeout):
		t.Fatal("start never resolved")

		return nil
	}
}

func pingPong(t *testing.T, dialer *websocket.Dialer, url string) *websocket.Conn {
	t.Helper()

	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"ping"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"pong"}`, string(data))

	return conn
}

func TestStartServesConnections(t *testing.T) {
	s, reg, _ := newTestServer(t, testConfig())

	require.NoError(t, awaitStart(t, s.Start(context.Background())))
	require.NotNil(t, s.Addr())

	conn := pingPong(t, websocket.DefaultDialer, "ws://"+s.Addr().String()+"/")
	defer func() { _ = conn.Close() }()

	assert.Eventually(t, func() bool { return s.ConnectionCount() == 1 }, testTimeout, testInterval)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	require.NoError(t, s.Shutdown(ctx))
	assert.Equal(t, int64(0), s.ConnectionCount())
	assert.Equal(t, 1, reg.disconnectCount())
	assert.NoError(t, s.Wait())
}

func TestStartResolvesExactlyOnce(t *testing.T) {
	s, _, _ := newTestServer(t, testConfig())

	result := s.Start(context.Background())
	require.NoError(t, awaitStart(t, result))

	_, ok := <-result
	assert.False(t, ok, "start result must be closed after its single value")
}

func TestStartTwiceFails(t *testing.T) {
	s, _, _ := newTestServer(t, testConfig())

	require.NoError(t, awaitStart(t, s.Start(context.Background())))

	err := awaitStart(t, s.Start(context.Background()))
	require.Error(t, err)

	var ge *customerrors.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, customerrors.ErrCodeAlreadyStarted, ge.Code)
}

func TestStartBindFailureNamesAddress(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer func() { _ = occupied.Close() }()

	port := occupied.Addr().(*net.TCPAddr).Port

	cfg := testConfig()
	cfg.Server.Port = port

	s, _, m := newTestServer(t, cfg)

	result := s.Start(context.Background())
	err = awaitStart(t, result)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "127.0.0.1:"+strconv.Itoa(port))
	assert.True(t, customerrors.IsType(err, customerrors.TypeBind))
	assert.InDelta(t, 1, testutil.ToFloat64(m.BindFailures), 0)
	assert.Nil(t, s.Addr())

	_, ok := <-result
	assert.False(t, ok)
}

func TestStartWithTLS(t *testing.T) {
	certFile, keyFile := writeSelfSignedCert(t, t.TempDir())

	cfg := testConfig()
	cfg.Server.TLS = config.TLSConfig{CertFile: certFile, KeyFile: keyFile, MinVersion: "TLS1.3"}

	s, _, _ := newTestServer(t, cfg)
	require.NoError(t, awaitStart(t, s.Start(context.Background())))

	dialer := &websocket.Dialer{
		//nolint:gosec // self-signed test certificate
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
		HandshakeTimeout: testTimeout,
	}

	conn := pingPong(t, dialer, "wss://"+s.Addr().String()+"/")
	_ = conn.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/", nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	assert.Error(t, err, "plain connections must not be served when TLS is configured")
}

func TestStartWithBadTLSFiles(t *testing.T) {
	dir := t.TempDir()

	cfg := testConfig()
	cfg.Server.TLS = config.TLSConfig{
		CertFile: filepath.Join(dir, "missing.crt"),
		KeyFile:  filepath.Join(dir, "missing.key"),
	}

	s, _, m := newTestServer(t, cfg)

	err := awaitStart(t, s.Start(context.Background()))
	require.Error(t, err)

	var ge *customerrors.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, customerrors.ErrCodeTLSConfigFailed, ge.Code)
	assert.InDelta(t, 0, testutil.ToFloat64(m.BindFailures), 0)
}

func TestBootstrapRejectsInvalidEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoint.Verbosity = "loud"

	_, err := BootstrapGatewayServer(cfg, &pingRegistry{}, nil, nil, zap.NewNop())
	require.Error(t, err)
	assert.True(t, customerrors.IsType(err, customerrors.TypeValidation))

	cfg = testConfig()
	cfg.Endpoint.OnUnexpectedFailure = "ignore"

	_, err = BootstrapGatewayServer(cfg, &pingRegistry{}, nil, nil, zap.NewNop())
	require.Error(t, err)
	assert.True(t, customerrors.IsType(err, customerrors.TypeValidation))
}

func TestWaitWithoutStart(t *testing.T) {
	s, _, _ := newTestServer(t, testConfig())

	assert.NoError(t, s.Wait())
	assert.Nil(t, s.Addr())
}

func TestStats(t *testing.T) {
	s, _, _ := newTestServer(t, testConfig())

	stats := s.Stats(context.Background())
	assert.Equal(t, int64(0), stats["connections"])
	assert.Equal(t, map[string]interface{}{"disconnects": 0}, stats["registry"])
}

func writeSelfSignedCert(t *testing.T, dir string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"Test Server"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")

	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))

	return certFile, keyFile
}
