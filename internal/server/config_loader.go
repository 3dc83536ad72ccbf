// Package server runs the gateway's listeners: the WebSocket endpoint and the
// diagnostics HTTP server.
package server

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/actual-software/socket-gateway/internal/config"
	customerrors "github.com/actual-software/socket-gateway/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. SOCKET_GATEWAY_SERVER_PORT.
const EnvPrefix = "SOCKET_GATEWAY"

// LoadConfig reads the configuration file at configPath, applies environment
// overrides and defaults, and validates the result. An empty path loads
// defaults and environment only.
func LoadConfig(configPath string) (*config.Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)

		if err := v.ReadInConfig(); err != nil {
			return nil, customerrors.WrapConfigLoadError(err, configPath)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, customerrors.WrapConfigLoadError(err, configPath)
	}

	cfg.ApplyDefaults()

	if err := config.ValidateConfig(&cfg); err != nil {
		return nil, customerrors.WrapConfigLoadError(err, configPath)
	}

	return &cfg, nil
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("server.host", config.DefaultHost)
	v.SetDefault("server.port", config.DefaultPort)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.min_version", "")
}

func setEndpointDefaults(v *viper.Viper) {
	v.SetDefault("endpoint.path", config.DefaultPath)
	v.SetDefault("endpoint.max_payload_length", config.DefaultMaxPayloadLength)
	v.SetDefault("endpoint.idle_timeout", config.DefaultIdleTimeout)
	v.SetDefault("endpoint.compression", config.DefaultCompression)
	v.SetDefault("endpoint.verbosity", config.DefaultVerbosity)
	v.SetDefault("endpoint.max_backpressure", config.DefaultMaxBackpressure)
	v.SetDefault("endpoint.send_queue_size", config.DefaultSendQueueSize)
	v.SetDefault("endpoint.max_connections", 0)
	v.SetDefault("endpoint.workers", config.DefaultWorkers)
	v.SetDefault("endpoint.on_unexpected_failure", config.DefaultOnUnexpectedFailure)
	v.SetDefault("endpoint.allowed_origins", []string{})
}

func setServiceDefaults(v *viper.Viper) {
	v.SetDefault("registry.provider", config.DefaultRegistryProvider)
	v.SetDefault("registry.announce_interval", config.DefaultAnnounceInterval)
	v.SetDefault("registry.redis.url", "")
	v.SetDefault("registry.redis.password", "")
	v.SetDefault("registry.redis.db", 0)
	v.SetDefault("registry.redis.key_prefix", "")
	v.SetDefault("auth.provider", config.AuthProviderNone)
	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.audience", "")
	v.SetDefault("auth.jwt.secret_key_env", "")
	v.SetDefault("auth.jwt.public_key_path", "")
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.provider", config.ProviderMemory)
	v.SetDefault("rate_limit.requests_per_minute", config.DefaultRateLimitPerMinute)
	v.SetDefault("rate_limit.burst", 0)
	v.SetDefault("rate_limit.redis.url", "")
	v.SetDefault("rate_limit.redis.password", "")
	v.SetDefault("rate_limit.redis.db", 0)
	v.SetDefault("rate_limit.redis.key_prefix", "")
}

func setOperationalDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.host", config.DefaultMetricsHost)
	v.SetDefault("metrics.port", config.DefaultMetricsPort)
	v.SetDefault("metrics.path", config.DefaultMetricsPath)
	v.SetDefault("logging.level", config.DefaultLogLevel)
	v.SetDefault("logging.format", config.DefaultLogFormat)
	v.SetDefault("logging.include_caller", false)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", config.DefaultServiceName)
	v.SetDefault("tracing.service_version", "")
	v.SetDefault("tracing.environment", "")
	v.SetDefault("tracing.sampler_type", config.DefaultSamplerType)
	v.SetDefault("tracing.sampler_param", 1.0)
	v.SetDefault("tracing.exporter_type", config.DefaultExporterType)
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.otlp_insecure", false)
}

func setDefaults(v *viper.Viper) {
	setServerDefaults(v)
	setEndpointDefaults(v)
	setServiceDefaults(v)
	setOperationalDefaults(v)
}
