package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/config"
	"github.com/actual-software/socket-gateway/internal/registry/swarm"
)

const testTimeout = 5 * time.Second

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestCommandStructure(t *testing.T) {
	rootCmd := newRootCmd()

	assert.Equal(t, "socket-gateway", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotNil(t, rootCmd.RunE)

	configFlag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)

	versionFlag := rootCmd.Flags().Lookup("version")
	require.NotNil(t, versionFlag)
	assert.Equal(t, "false", versionFlag.DefValue)

	assert.NotNil(t, rootCmd.Flags().Lookup("log-level"))

	require.Len(t, rootCmd.Commands(), 1)
	assert.Equal(t, "validate", rootCmd.Commands()[0].Use)
}

func TestRunVersionFlag(t *testing.T) {
	out, err := executeRoot(t, "--version")
	require.NoError(t, err)

	assert.Contains(t, out, "Socket Gateway")
	assert.Contains(t, out, "Version: "+Version)
	assert.Contains(t, out, "Build Time:")
	assert.Contains(t, out, "Git Commit:")
}

func TestRunInvalidLogLevel(t *testing.T) {
	_, err := executeRoot(t, "--log-level", "invalid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize logger")
}

func TestRunMissingConfigFile(t *testing.T) {
	_, err := executeRoot(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		out, err := executeRoot(t, "validate", "--config", writeConfig(t, "endpoint:\n  verbosity: events\n"))
		require.NoError(t, err)
		assert.Contains(t, out, "configuration is valid")
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := executeRoot(t, "validate", "--config", writeConfig(t, "endpoint:\n  on_unexpected_failure: ignore\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid endpoint configuration")
	})
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  config.LoggingConfig
		wantErr bool
	}{
		{name: "json info", config: config.LoggingConfig{Level: "info", Format: "json"}},
		{name: "console debug", config: config.LoggingConfig{Level: "debug", Format: "console", IncludeCaller: true}},
		{name: "error level", config: config.LoggingConfig{Level: "error"}},
		{name: "invalid level", config: config.LoggingConfig{Level: "verbose"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := initLogger(tt.config)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestInitializeComponentsMemory(t *testing.T) {
	cfg := config.Default()

	c, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	defer c.close(zap.NewNop())

	_, isSwarm := c.Registry.(*swarm.Registry)
	assert.True(t, isSwarm, "registry is used directly without rate limiting")
	assert.Nil(t, c.RedisClient)
}

func TestInitializeComponentsRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Registry.Provider = config.ProviderRedis
	cfg.Registry.Redis.URL = "redis://" + mr.Addr()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Provider = config.ProviderRedis
	cfg.RateLimit.Redis.URL = "redis://" + mr.Addr()

	c, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	defer c.close(zap.NewNop())

	_, isSwarm := c.Registry.(*swarm.Registry)
	assert.False(t, isSwarm, "registry is wrapped by the rate limiter")
	assert.NotNil(t, c.RedisClient)
}

func TestInitializeComponentsUnsupportedAuth(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Provider = "oauth"

	_, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create token validator")
}

func TestServersEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Metrics.Host = "127.0.0.1"
	cfg.Metrics.Port = 0

	logger := zap.NewNop()

	c, err := initializeComponents(context.Background(), cfg, logger)
	require.NoError(t, err)

	defer c.close(logger)

	servers, err := startServers(context.Background(), cfg, c, logger)
	require.NoError(t, err)
	require.NotNil(t, servers.Diagnostics)
	require.NotNil(t, servers.Diagnostics.Addr())

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+servers.Gateway.Addr().String()+"/", nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"action":"announce","info_hash":"abc","peer_id":"p1","left":10}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"action":"announce","info_hash":"abc","peer_id":"p1","interval":120,"complete":0,"incomplete":1}`,
		string(data))

	shutdownServers(context.Background(), servers, logger)

	assert.Equal(t, int64(0), servers.Gateway.ConnectionCount())

	stats, err := c.Store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Peers, "peers leave their swarms when the gateway shuts down")
}
