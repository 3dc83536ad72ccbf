package gateway

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/codec"
	customerrors "github.com/actual-software/socket-gateway/internal/errors"
	"github.com/actual-software/socket-gateway/internal/logging"
	"github.com/actual-software/socket-gateway/internal/peer"
	"github.com/actual-software/socket-gateway/internal/registry"
)

// dispatch hands msg to the registry and returns its tagged failure, if any.
func (g *Gateway) dispatch(ctx context.Context, msg codec.Message, p *peer.Peer) *registry.Failure {
	ctx, span := g.tracer.Start(ctx, "registry.ProcessMessage",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("connection.id", p.ConnectionID())))
	defer span.End()

	if action, ok := msg.String("action"); ok {
		span.SetAttributes(attribute.String("message.action", action))
	}

	start := time.Now()
	failure := g.registry.ProcessMessage(ctx, msg, p)

	result := "ok"
	if failure != nil {
		result = failure.Kind.String()

		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Reason)
		g.metrics.IncrementRegistryFailures(result)
	}

	g.metrics.RecordDispatchDuration(result, time.Since(start))

	return failure
}

// disconnect notifies the registry that p's connection closed.
func (g *Gateway) disconnect(ctx context.Context, p *peer.Peer) {
	ctx, span := g.tracer.Start(ctx, "registry.DisconnectPeer",
		trace.WithAttributes(
			attribute.String("connection.id", p.ConnectionID()),
			attribute.String("peer.id", p.LogID())))
	defer span.End()

	g.registry.DisconnectPeer(ctx, p)
	g.metrics.IncrementPeerDisconnects()
}

// handleUnexpected applies the configured policy to an unexpected registry failure.
// It is logged regardless of verbosity.
func (g *Gateway) handleUnexpected(l *Link, p *peer.Peer, failure *registry.Failure) {
	err := customerrors.WrapUnexpectedError(l.ctx, failure).
		WithContext("policy", g.policy.String())
	customerrors.RecordError(err, g.metrics)

	logging.LogError(l.ctx, g.logger, "Unexpected registry failure", err,
		zap.String("peer_id", p.LogID()),
		zap.String("policy", g.policy.String()))

	switch g.policy {
	case FailureKeepOpen:
	case FailurePropagate:
		panic(failure)
	default:
		l.close()
	}
}
