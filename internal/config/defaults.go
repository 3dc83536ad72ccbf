package config

// Default values. Every section falls back field by field.
const (
	DefaultHost                = "0.0.0.0"
	DefaultPort                = 8000
	DefaultPath                = "/"
	DefaultMaxPayloadLength    = 64 * 1024
	DefaultIdleTimeout         = 240
	DefaultCompression         = CompressionShared
	DefaultVerbosity           = "silent"
	DefaultMaxBackpressure     = 64 * 1024
	DefaultSendQueueSize       = 256
	DefaultWorkers             = 1
	DefaultOnUnexpectedFailure = "close"
	DefaultRegistryProvider    = ProviderMemory
	DefaultAnnounceInterval    = 120
	DefaultMetricsHost         = "0.0.0.0"
	DefaultMetricsPort         = 9090
	DefaultMetricsPath         = "/metrics"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultServiceName         = "socket-gateway"
	DefaultSamplerType         = "always_on"
	DefaultExporterType        = "stdout"
	DefaultRateLimitPerMinute  = 600
)

// Compression modes.
const (
	CompressionShared   = "shared"
	CompressionDisabled = "disabled"
)

// Storage providers.
const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"
)

// Auth providers.
const (
	AuthProviderNone = "none"
	AuthProviderJWT  = "jwt"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Metrics.Enabled = true
	cfg.ApplyDefaults()

	return cfg
}

// ApplyDefaults fills every zero-valued field with its default. Boolean switches
// are left as provided.
func (c *Config) ApplyDefaults() {
	c.Server.applyDefaults()
	c.Endpoint.applyDefaults()
	c.Registry.applyDefaults()
	c.Auth.applyDefaults()
	c.RateLimit.applyDefaults()
	c.Metrics.applyDefaults()
	c.Logging.applyDefaults()
	c.Tracing.applyDefaults()
}

func (s *ServerConfig) applyDefaults() {
	if s.Host == "" {
		s.Host = DefaultHost
	}

	if s.Port == 0 {
		s.Port = DefaultPort
	}
}

func (e *EndpointConfig) applyDefaults() {
	if e.Path == "" {
		e.Path = DefaultPath
	}

	if e.MaxPayloadLength == 0 {
		e.MaxPayloadLength = DefaultMaxPayloadLength
	}

	if e.IdleTimeout == 0 {
		e.IdleTimeout = DefaultIdleTimeout
	}

	if e.Compression == "" {
		e.Compression = DefaultCompression
	}

	if e.Verbosity == "" {
		e.Verbosity = DefaultVerbosity
	}

	if e.MaxBackpressure == 0 {
		e.MaxBackpressure = DefaultMaxBackpressure
	}

	if e.SendQueueSize == 0 {
		e.SendQueueSize = DefaultSendQueueSize
	}

	if e.Workers == 0 {
		e.Workers = DefaultWorkers
	}

	if e.OnUnexpectedFailure == "" {
		e.OnUnexpectedFailure = DefaultOnUnexpectedFailure
	}
}

func (r *RegistryConfig) applyDefaults() {
	if r.Provider == "" {
		r.Provider = DefaultRegistryProvider
	}

	if r.AnnounceInterval == 0 {
		r.AnnounceInterval = DefaultAnnounceInterval
	}
}

func (a *AuthConfig) applyDefaults() {
	if a.Provider == "" {
		a.Provider = AuthProviderNone
	}
}

func (r *RateLimitConfig) applyDefaults() {
	if r.Provider == "" {
		r.Provider = ProviderMemory
	}

	if r.RequestsPerMinute == 0 {
		r.RequestsPerMinute = DefaultRateLimitPerMinute
	}
}

func (m *MetricsConfig) applyDefaults() {
	if m.Host == "" {
		m.Host = DefaultMetricsHost
	}

	if m.Port == 0 {
		m.Port = DefaultMetricsPort
	}

	if m.Path == "" {
		m.Path = DefaultMetricsPath
	}
}

func (l *LoggingConfig) applyDefaults() {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}

	if l.Format == "" {
		l.Format = DefaultLogFormat
	}
}

func (t *TracingConfig) applyDefaults() {
	if t.ServiceName == "" {
		t.ServiceName = DefaultServiceName
	}

	if t.SamplerType == "" {
		t.SamplerType = DefaultSamplerType
	}

	if t.ExporterType == "" {
		t.ExporterType = DefaultExporterType
	}
}
