package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actual-software/socket-gateway/internal/config"
	customerrors "github.com/actual-software/socket-gateway/internal/errors"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigMergesSectionsFieldByField(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9001
endpoint:
  path: /announce
  verbosity: events
registry:
  provider: redis
  redis:
    url: redis://localhost:6379/0
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultHost, cfg.Server.Host)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "/announce", cfg.Endpoint.Path)
	assert.Equal(t, "events", cfg.Endpoint.Verbosity)
	assert.Equal(t, int64(config.DefaultMaxPayloadLength), cfg.Endpoint.MaxPayloadLength)
	assert.Equal(t, config.DefaultIdleTimeout, cfg.Endpoint.IdleTimeout)
	assert.Equal(t, config.CompressionShared, cfg.Endpoint.Compression)
	assert.Equal(t, config.DefaultMaxBackpressure, cfg.Endpoint.MaxBackpressure)
	assert.Equal(t, "close", cfg.Endpoint.OnUnexpectedFailure)
	assert.Equal(t, config.ProviderRedis, cfg.Registry.Provider)
	assert.Equal(t, config.DefaultAnnounceInterval, cfg.Registry.AnnounceInterval)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Server.TLS.Enabled())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9001\n")

	t.Setenv("SOCKET_GATEWAY_SERVER_PORT", "9100")
	t.Setenv("SOCKET_GATEWAY_ENDPOINT_VERBOSITY", "trace")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "trace", cfg.Endpoint.Verbosity)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultPath, cfg.Endpoint.Path)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantMsg string
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.yaml") },
			wantMsg: "failed to load configuration",
		},
		{
			name:    "invalid verbosity",
			path:    func(t *testing.T) string { return writeConfigFile(t, "endpoint:\n  verbosity: loud\n") },
			wantMsg: "invalid endpoint configuration",
		},
		{
			name:    "cert without key",
			path:    func(t *testing.T) string { return writeConfigFile(t, "server:\n  tls:\n    cert_file: a.crt\n") },
			wantMsg: "invalid server configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path(t))
			require.Error(t, err)

			assert.Contains(t, err.Error(), tt.wantMsg)

			var ge *customerrors.GatewayError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, customerrors.ErrCodeConfigLoadFailed, ge.Code)
		})
	}
}
