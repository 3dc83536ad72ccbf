package config

import (
	"fmt"
	"strings"

	customerrors "github.com/actual-software/socket-gateway/internal/errors"
	"github.com/actual-software/socket-gateway/internal/logging"
)

const maxPort = 65535

// ValidateConfig validates the entire configuration.
func ValidateConfig(config *Config) error {
	if config == nil {
		return customerrors.NewValidationError("config cannot be nil").
			WithComponent("config")
	}

	sections := []struct {
		name     string
		validate func() error
	}{
		{"server", func() error { return ValidateServerConfig(&config.Server) }},
		{"endpoint", func() error { return ValidateEndpointConfig(&config.Endpoint) }},
		{"registry", func() error { return ValidateRegistryConfig(&config.Registry) }},
		{"auth", func() error { return ValidateAuthConfig(&config.Auth) }},
		{"rate limit", func() error { return ValidateRateLimitConfig(&config.RateLimit) }},
		{"metrics", func() error { return ValidateMetricsConfig(&config.Metrics, config.Server.Port) }},
		{"logging", func() error { return ValidateLoggingConfig(&config.Logging) }},
		{"tracing", func() error { return ValidateTracingConfig(&config.Tracing) }},
	}

	for _, section := range sections {
		if err := section.validate(); err != nil {
			return customerrors.Wrap(err, "invalid "+section.name+" configuration").
				WithComponent("config")
		}
	}

	return nil
}

// ValidateServerConfig validates listener configuration.
func ValidateServerConfig(config *ServerConfig) error {
	if config.Host == "" {
		return customerrors.NewValidationError("host cannot be empty")
	}

	if err := validatePort("port", config.Port); err != nil {
		return err
	}

	return ValidateTLSConfig(&config.TLS)
}

// ValidateTLSConfig validates TLS configuration.
func ValidateTLSConfig(config *TLSConfig) error {
	if !config.Enabled() {
		return nil
	}

	if config.KeyFile == "" {
		return customerrors.NewValidationError("key file required when cert file is set").
			WithComponent("config")
	}

	if config.MinVersion != "" {
		validVersions := []string{"TLS1.2", "TLS1.3"}
		if !contains(validVersions, config.MinVersion) {
			return customerrors.NewValidationError(
				fmt.Sprintf("TLS version too old or invalid: %s, must be one of %v", config.MinVersion, validVersions))
		}
	}

	return nil
}

// ValidateEndpointConfig validates the websocket endpoint configuration.
func ValidateEndpointConfig(config *EndpointConfig) error {
	if !strings.HasPrefix(config.Path, "/") {
		return customerrors.NewValidationError("endpoint path must start with /, got: " + config.Path)
	}

	positives := map[string]int64{
		"max_payload_length": config.MaxPayloadLength,
		"idle_timeout":       int64(config.IdleTimeout),
		"max_backpressure":   int64(config.MaxBackpressure),
		"send_queue_size":    int64(config.SendQueueSize),
		"workers":            int64(config.Workers),
	}

	for name, value := range positives {
		if value <= 0 {
			return customerrors.NewValidationError(fmt.Sprintf("%s must be positive, got %d", name, value))
		}
	}

	if config.MaxConnections < 0 {
		return customerrors.NewValidationError(
			fmt.Sprintf("max_connections cannot be negative, got %d", config.MaxConnections))
	}

	validCompression := []string{CompressionShared, CompressionDisabled}
	if !contains(validCompression, config.Compression) {
		return customerrors.NewValidationError(
			fmt.Sprintf("invalid compression: %s, must be one of %v", config.Compression, validCompression))
	}

	if _, err := logging.ParseVerbosity(config.Verbosity); err != nil {
		return customerrors.WrapWithType(err, customerrors.TypeValidation, "invalid verbosity")
	}

	validPolicies := []string{"close", "keep_open", "propagate"}
	if !contains(validPolicies, config.OnUnexpectedFailure) {
		return customerrors.NewValidationError(
			fmt.Sprintf("invalid on_unexpected_failure: %s, must be one of %v",
				config.OnUnexpectedFailure, validPolicies))
	}

	return nil
}

// ValidateRegistryConfig validates the built-in registry configuration.
func ValidateRegistryConfig(config *RegistryConfig) error {
	if config.AnnounceInterval <= 0 {
		return customerrors.NewValidationError(
			fmt.Sprintf("announce_interval must be positive, got %d", config.AnnounceInterval))
	}

	return validateProvider(config.Provider, config.Redis)
}

// ValidateAuthConfig validates announce token configuration.
func ValidateAuthConfig(config *AuthConfig) error {
	switch config.Provider {
	case AuthProviderNone:
		return nil
	case AuthProviderJWT:
		if config.JWT.SecretKeyEnv == "" && config.JWT.PublicKeyPath == "" {
			return customerrors.NewValidationError("jwt requires secret_key_env or public_key_path")
		}

		return nil
	default:
		return customerrors.NewValidationError(
			fmt.Sprintf("invalid auth provider: %s, must be one of %v",
				config.Provider, []string{AuthProviderNone, AuthProviderJWT}))
	}
}

// ValidateRateLimitConfig validates rate limit configuration.
func ValidateRateLimitConfig(config *RateLimitConfig) error {
	if !config.Enabled {
		return nil
	}

	if config.RequestsPerMinute <= 0 {
		return customerrors.NewValidationError(
			fmt.Sprintf("requests_per_minute must be positive, got %d", config.RequestsPerMinute))
	}

	if config.Burst < 0 {
		return customerrors.NewValidationError(fmt.Sprintf("burst cannot be negative, got %d", config.Burst))
	}

	return validateProvider(config.Provider, config.Redis)
}

// ValidateMetricsConfig validates the diagnostics server configuration.
func ValidateMetricsConfig(config *MetricsConfig, serverPort int) error {
	if !config.Enabled {
		return nil
	}

	if err := validatePort("metrics port", config.Port); err != nil {
		return err
	}

	if config.Port == serverPort {
		return customerrors.NewValidationError(
			fmt.Sprintf("metrics port %d conflicts with server port", config.Port))
	}

	if !strings.HasPrefix(config.Path, "/") {
		return customerrors.NewValidationError("path must start with /, got: " + config.Path)
	}

	return nil
}

// ValidateLoggingConfig validates logging configuration.
func ValidateLoggingConfig(config *LoggingConfig) error {
	if config.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
		if !contains(validLevels, config.Level) {
			return customerrors.NewValidationError(
				fmt.Sprintf("invalid log level: %s, must be one of %v", config.Level, validLevels))
		}
	}

	if config.Format != "" {
		validFormats := []string{"json", "console"}
		if !contains(validFormats, config.Format) {
			return customerrors.NewValidationError(
				fmt.Sprintf("invalid log format: %s, must be one of %v", config.Format, validFormats))
		}
	}

	return nil
}

// ValidateTracingConfig validates tracing configuration.
func ValidateTracingConfig(config *TracingConfig) error {
	if !config.Enabled {
		return nil
	}

	if config.ServiceName == "" {
		return customerrors.NewValidationError("service name required when tracing enabled")
	}

	validExporters := []string{"otlp", "stdout"}
	if !contains(validExporters, config.ExporterType) {
		return customerrors.NewValidationError(
			fmt.Sprintf("invalid exporter type: %s, must be one of %v", config.ExporterType, validExporters))
	}

	if config.ExporterType == "otlp" && config.OTLPEndpoint == "" {
		return customerrors.NewValidationError("otlp_endpoint required for otlp exporter")
	}

	validSamplers := []string{"always_on", "always_off", "traceidratio"}
	if !contains(validSamplers, config.SamplerType) {
		return customerrors.NewValidationError(
			fmt.Sprintf("invalid sampler type: %s, must be one of %v", config.SamplerType, validSamplers))
	}

	if config.SamplerType == "traceidratio" && (config.SamplerParam < 0 || config.SamplerParam > 1) {
		return customerrors.NewValidationError(
			fmt.Sprintf("sampler_param must be between 0 and 1, got %v", config.SamplerParam))
	}

	return nil
}

func validateProvider(provider string, redis RedisConfig) error {
	switch provider {
	case ProviderMemory:
		return nil
	case ProviderRedis:
		if redis.URL == "" {
			return customerrors.NewValidationError("redis URL is required")
		}

		return nil
	default:
		return customerrors.NewValidationError(
			fmt.Sprintf("unsupported provider: %s, must be one of %v", provider, []string{ProviderMemory, ProviderRedis}))
	}
}

func validatePort(name string, port int) error {
	if port < 1 || port > maxPort {
		return customerrors.NewValidationError(fmt.Sprintf("%s must be between 1 and 65535, got %d", name, port))
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}

	return false
}
