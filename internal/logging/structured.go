// Package logging provides structured logging utilities with error context integration.
package logging

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/actual-software/socket-gateway/internal/errors"
)

// loggingContextKey is a type for logging-specific context keys.
type loggingContextKey string

const (
	loggingContextKeyConnectionID loggingContextKey = "connection_id"
	loggingContextKeyRemoteAddr   loggingContextKey = "remote_addr"
)

// WithError adds error context to logger fields.
func WithError(err error) []zap.Field {
	if err == nil {
		return []zap.Field{}
	}

	fields := []zap.Field{
		zap.Error(err),
	}

	var gatewayErr *errors.GatewayError
	if stderrors.As(err, &gatewayErr) {
		fields = append(fields,
			zap.String("error_type", string(gatewayErr.Type)),
			zap.String("error_code", gatewayErr.Code),
			zap.String("component", gatewayErr.Component),
			zap.String("operation", gatewayErr.Operation),
			zap.String("severity", string(gatewayErr.Severity)),
		)

		if len(gatewayErr.Context) > 0 {
			fields = append(fields, zap.Any("error_context", gatewayErr.Context))
		}

		// Stack traces only for errors that point at a bug
		if gatewayErr.Severity == errors.SeverityHigh || gatewayErr.Severity == errors.SeverityCritical {
			if len(gatewayErr.Stack) > 0 {
				fields = append(fields, zap.Strings("stack_trace", gatewayErr.Stack))
			}
		}
	}

	return fields
}

// ContextWithConnection adds connection information to context.
func ContextWithConnection(ctx context.Context, connectionID, remoteAddr string) context.Context {
	if connectionID != "" {
		ctx = context.WithValue(ctx, loggingContextKeyConnectionID, connectionID)
	}

	if remoteAddr != "" {
		ctx = context.WithValue(ctx, loggingContextKeyRemoteAddr, remoteAddr)
	}

	return ctx
}

// WithConnectionContext returns the connection fields stored in ctx.
func WithConnectionContext(ctx context.Context) []zap.Field {
	fields := []zap.Field{}

	for _, key := range []loggingContextKey{loggingContextKeyConnectionID, loggingContextKeyRemoteAddr} {
		if value, ok := ctx.Value(key).(string); ok && value != "" {
			fields = append(fields, zap.String(string(key), value))
		}
	}

	return fields
}

// LogError logs an error with full context at a level derived from its severity.
func LogError(ctx context.Context, logger *zap.Logger, msg string, err error, additionalFields ...zap.Field) {
	fields := WithError(err)
	fields = append(fields, WithConnectionContext(ctx)...)
	fields = append(fields, additionalFields...)

	if ce := logger.Check(getLogLevelForError(err), msg); ce != nil {
		ce.Write(fields...)
	}
}

// LogEvent logs a connection lifecycle event with context.
func LogEvent(ctx context.Context, logger *zap.Logger, msg string, additionalFields ...zap.Field) {
	fields := WithConnectionContext(ctx)
	fields = append(fields, additionalFields...)
	logger.Info(msg, fields...)
}

// getLogLevelForError determines the appropriate log level based on error severity.
func getLogLevelForError(err error) zapcore.Level {
	var gatewayErr *errors.GatewayError
	if !stderrors.As(err, &gatewayErr) {
		return zapcore.ErrorLevel
	}

	switch gatewayErr.Severity {
	case errors.SeverityLow:
		return zapcore.WarnLevel
	case errors.SeverityMedium, errors.SeverityHigh, errors.SeverityCritical:
		return zapcore.ErrorLevel
	default:
		return zapcore.ErrorLevel
	}
}
