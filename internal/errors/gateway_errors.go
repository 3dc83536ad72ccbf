package errors

import (
	"context"
	"net"
	"net/http"
	"strconv"
)

// Error codes for gateway operations.
const (
	ErrCodeBindFailed            = "GATEWAY_BIND_FAILED"
	ErrCodeAlreadyStarted        = "GATEWAY_ALREADY_STARTED"
	ErrCodeTLSConfigFailed       = "GATEWAY_TLS_CONFIG_FAILED"
	ErrCodeShutdownFailed        = "GATEWAY_SHUTDOWN_FAILED"
	ErrCodeConfigLoadFailed      = "GATEWAY_CONFIG_LOAD_FAILED"
	ErrCodeDecodeFailed          = "GATEWAY_DECODE_FAILED"
	ErrCodeRegistryRejected      = "GATEWAY_REGISTRY_REJECTED"
	ErrCodeRegistryUnexpected    = "GATEWAY_REGISTRY_UNEXPECTED"
	ErrCodeMaxConnectionsReached = "GATEWAY_MAX_CONNECTIONS"
)

// WrapBindError wraps a failure to bind the configured transport address.
func WrapBindError(ctx context.Context, err error, host string, port int) *GatewayError {
	address := net.JoinHostPort(host, strconv.Itoa(port))

	ge := WrapWithType(err, TypeBind, "failed to listen on "+address)
	ge.Code = ErrCodeBindFailed

	return FromContext(ctx, ge).
		WithComponent("server").
		WithOperation("start").
		WithContext("host", host).
		WithContext("port", port)
}

// NewAlreadyStartedError reports a second start of the same server.
func NewAlreadyStartedError(address string) *GatewayError {
	return New(TypeBind, "server already started on "+address).
		WithCode(ErrCodeAlreadyStarted).
		WithComponent("server").
		WithOperation("start")
}

// WrapTLSConfigError wraps an error related to TLS configuration.
func WrapTLSConfigError(ctx context.Context, err error, certFile, keyFile string) *GatewayError {
	ge := WrapWithType(err, TypeBind, "TLS configuration failed")
	ge.Code = ErrCodeTLSConfigFailed

	return FromContext(ctx, ge).
		WithComponent("server").
		WithOperation("configure_tls").
		WithContext("cert_file", certFile).
		WithContext("key_file", keyFile)
}

// WrapShutdownError wraps an error that occurred during server shutdown.
func WrapShutdownError(ctx context.Context, err error) *GatewayError {
	return WrapContext(ctx, err, "failed to shutdown server gracefully").
		WithCode(ErrCodeShutdownFailed).
		WithComponent("server").
		WithOperation("shutdown")
}

// WrapConfigLoadError wraps an error that occurred while loading configuration.
func WrapConfigLoadError(err error, configPath string) *GatewayError {
	return Wrap(err, "failed to load configuration").
		WithCode(ErrCodeConfigLoadFailed).
		WithComponent("config").
		WithOperation("load").
		WithContext("config_path", configPath)
}

// WrapDecodeError wraps an inbound payload that could not be decoded.
func WrapDecodeError(ctx context.Context, err error) *GatewayError {
	ge := WrapWithType(err, TypeDecode, "inbound message rejected")
	ge.Code = ErrCodeDecodeFailed

	return FromContext(ctx, ge).
		WithComponent("gateway").
		WithOperation("decode")
}

// WrapRejectionError wraps a recognized rejection raised by the registry.
func WrapRejectionError(ctx context.Context, err error) *GatewayError {
	ge := WrapWithType(err, TypeRejected, "registry rejected message")
	ge.Code = ErrCodeRegistryRejected

	return FromContext(ctx, ge).
		WithComponent("gateway").
		WithOperation("dispatch")
}

// WrapUnexpectedError wraps an unclassified registry failure.
func WrapUnexpectedError(ctx context.Context, err error) *GatewayError {
	ge := WrapWithType(err, TypeInternal, "registry failed unexpectedly")
	ge.Code = ErrCodeRegistryUnexpected

	return FromContext(ctx, ge).
		WithComponent("gateway").
		WithOperation("dispatch")
}

// NewMaxConnectionsError creates an error when max connections is reached.
func NewMaxConnectionsError(current int64, limit int) *GatewayError {
	return New(TypeUnavailable, "maximum connections reached").
		WithCode(ErrCodeMaxConnectionsReached).
		WithComponent("frontend").
		WithContext("current_connections", current).
		WithContext("max_connections", limit).
		WithHTTPStatus(http.StatusServiceUnavailable)
}
