package websocket

import (
	"time"

	"github.com/actual-software/socket-gateway/internal/config"
)

const (
	defaultPath             = "/"
	defaultMaxPayloadLength = 64 * 1024
	defaultIdleTimeout      = 240 * time.Second
	defaultMaxBackpressure  = 64 * 1024
	defaultSendQueueSize    = 256
	defaultWriteTimeout     = 10 * time.Second
	defaultReadBufferSize   = 4096
	defaultWriteBufferSize  = 4096
	shutdownTimeout         = 30 * time.Second
)

// Config holds WebSocket-specific configuration.
type Config struct {
	Path             string
	MaxPayloadLength int64
	// IdleTimeout closes connections that sent nothing, not even a pong, for this long.
	IdleTimeout     time.Duration
	WriteTimeout    time.Duration
	Compression     bool
	MaxBackpressure int
	SendQueueSize   int
	MaxConnections  int
	AllowedOrigins  []string
}

// ConfigFromEndpoint converts the endpoint section of the gateway configuration.
func ConfigFromEndpoint(cfg config.EndpointConfig) Config {
	return Config{
		Path:             cfg.Path,
		MaxPayloadLength: cfg.MaxPayloadLength,
		IdleTimeout:      time.Duration(cfg.IdleTimeout) * time.Second,
		Compression:      cfg.Compression != config.CompressionDisabled,
		MaxBackpressure:  cfg.MaxBackpressure,
		SendQueueSize:    cfg.SendQueueSize,
		MaxConnections:   cfg.MaxConnections,
		AllowedOrigins:   cfg.AllowedOrigins,
	}
}

// ApplyDefaults applies default values to the configuration.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.MaxPayloadLength == 0 {
		c.MaxPayloadLength = defaultMaxPayloadLength
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.MaxBackpressure == 0 {
		c.MaxBackpressure = defaultMaxBackpressure
	}
	if c.SendQueueSize == 0 {
		c.SendQueueSize = defaultSendQueueSize
	}
}

// pingPeriod keeps an otherwise quiet but healthy client inside the idle timeout.
func (c *Config) pingPeriod() time.Duration {
	return c.IdleTimeout / 2
}
