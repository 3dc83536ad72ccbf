package errors

import (
	"errors"
	"strings"

	"github.com/actual-software/socket-gateway/internal/metrics"
)

// RecordErrorMetrics records error metrics based on GatewayError details.
func RecordErrorMetrics(err *GatewayError, registry *metrics.Registry) {
	if err == nil || registry == nil {
		return
	}

	registry.IncrementErrors(err.Code, err.Component, err.Operation)
	registry.IncrementErrorsByType(string(err.Type))
	registry.IncrementErrorsByComponent(err.Component)
	registry.IncrementErrorsBySeverity(strings.ToLower(string(err.Severity)))
}

// RecordError is a helper to record error metrics if the error is a GatewayError.
func RecordError(err error, registry *metrics.Registry) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		RecordErrorMetrics(gwErr, registry)
	}
}
