// Package config defines configuration structures for the socket gateway.
package config

// Config represents the complete configuration for the socket gateway.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Endpoint  EndpointConfig  `mapstructure:"endpoint"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig represents the listener configuration.
type ServerConfig struct {
	Host string    `mapstructure:"host"`
	Port int       `mapstructure:"port"`
	TLS  TLSConfig `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration. TLS is used iff CertFile is set.
type TLSConfig struct {
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	MinVersion string `mapstructure:"min_version"`
}

// Enabled reports whether the listener should terminate TLS.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != ""
}

// EndpointConfig represents the websocket protocol endpoint.
type EndpointConfig struct {
	Path             string `mapstructure:"path"`
	MaxPayloadLength int64  `mapstructure:"max_payload_length"`
	// IdleTimeout is in seconds.
	IdleTimeout         int      `mapstructure:"idle_timeout"`
	Compression         string   `mapstructure:"compression"` // "shared" or "disabled"
	Verbosity           string   `mapstructure:"verbosity"`   // "silent", "events" or "trace"
	MaxBackpressure     int      `mapstructure:"max_backpressure"`
	SendQueueSize       int      `mapstructure:"send_queue_size"`
	MaxConnections      int      `mapstructure:"max_connections"`
	Workers             int      `mapstructure:"workers"`
	OnUnexpectedFailure string   `mapstructure:"on_unexpected_failure"` // "close", "keep_open" or "propagate"
	AllowedOrigins      []string `mapstructure:"allowed_origins"`
}

// RedisConfig represents Redis connection settings.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RegistryConfig represents the built-in swarm registry.
type RegistryConfig struct {
	Provider string `mapstructure:"provider"` // "memory" or "redis"
	// AnnounceInterval is in seconds.
	AnnounceInterval int         `mapstructure:"announce_interval"`
	Redis            RedisConfig `mapstructure:"redis"`
}

// AuthConfig represents announce token validation.
type AuthConfig struct {
	Provider string    `mapstructure:"provider"` // "none" or "jwt"
	JWT      JWTConfig `mapstructure:"jwt"`
}

// JWTConfig represents the JWT configuration.
type JWTConfig struct {
	Issuer        string `mapstructure:"issuer"`
	Audience      string `mapstructure:"audience"`
	SecretKeyEnv  string `mapstructure:"secret_key_env"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

// RateLimitConfig represents per-connection message rate limiting.
type RateLimitConfig struct {
	Enabled           bool        `mapstructure:"enabled"`
	Provider          string      `mapstructure:"provider"` // "redis" or "memory"
	RequestsPerMinute int         `mapstructure:"requests_per_minute"`
	Burst             int         `mapstructure:"burst"`
	Redis             RedisConfig `mapstructure:"redis"`
}

// MetricsConfig represents the diagnostics server configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	IncludeCaller bool   `mapstructure:"include_caller"`
}

// TracingConfig represents the distributed tracing configuration.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	Environment    string  `mapstructure:"environment"`
	SamplerType    string  `mapstructure:"sampler_type"`
	SamplerParam   float64 `mapstructure:"sampler_param"`
	ExporterType   string  `mapstructure:"exporter_type"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool    `mapstructure:"otlp_insecure"`
}
