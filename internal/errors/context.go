package errors

import (
	"context"
	"errors"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	ContextKeyConnectionID ContextKey = "connection_id"
	ContextKeyRemoteAddr   ContextKey = "remote_addr"
	ContextKeyPeerID       ContextKey = "peer_id"
)

var contextKeys = []ContextKey{
	ContextKeyConnectionID,
	ContextKeyRemoteAddr,
	ContextKeyPeerID,
}

// FromContext copies connection metadata from ctx onto the error.
func FromContext(ctx context.Context, err error) *GatewayError {
	if err == nil {
		return nil
	}

	var ge *GatewayError
	if !errors.As(err, &ge) {
		ge = Wrap(err, err.Error())
	}

	if ctx == nil {
		return ge
	}

	for _, key := range contextKeys {
		if value := ctx.Value(key); value != nil {
			ge = ge.WithContext(string(key), value)
		}
	}

	return ge
}

// WrapContext wraps an error with context information.
func WrapContext(ctx context.Context, err error, message string) *GatewayError {
	if err == nil {
		return nil
	}

	return FromContext(ctx, Wrap(err, message))
}

// EnrichContextWithConnection adds connection information to context for error tracking.
func EnrichContextWithConnection(ctx context.Context, connectionID, remoteAddr string) context.Context {
	if connectionID != "" {
		ctx = context.WithValue(ctx, ContextKeyConnectionID, connectionID)
	}

	if remoteAddr != "" {
		ctx = context.WithValue(ctx, ContextKeyRemoteAddr, remoteAddr)
	}

	return ctx
}

// EnrichContextWithPeer adds the registry-assigned peer id to context.
func EnrichContextWithPeer(ctx context.Context, peerID string) context.Context {
	if peerID != "" {
		ctx = context.WithValue(ctx, ContextKeyPeerID, peerID)
	}

	return ctx
}
