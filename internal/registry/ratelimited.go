package registry

import (
	"context"

	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/codec"
	"github.com/actual-software/socket-gateway/internal/peer"
	"github.com/actual-software/socket-gateway/internal/ratelimit"
)

// ReasonRateLimited is the rejection reason produced when a peer exceeds its limit.
const ReasonRateLimited = "rate limit exceeded"

type rateLimited struct {
	next    Registry
	limiter ratelimit.RateLimiter
	limit   ratelimit.Limit
	logger  *zap.Logger
}

// RateLimited wraps next so that messages beyond limit are rejected before they
// reach it. Limits are tracked per connection.
func RateLimited(next Registry, limiter ratelimit.RateLimiter, limit ratelimit.Limit, logger *zap.Logger) Registry {
	if limiter == nil || !limit.Enabled() {
		return next
	}

	return &rateLimited{
		next:    next,
		limiter: limiter,
		limit:   limit,
		logger:  logger,
	}
}

func (r *rateLimited) ProcessMessage(ctx context.Context, msg codec.Message, p *peer.Peer) *Failure {
	allowed, err := r.limiter.Allow(ctx, p.ConnectionID(), r.limit)
	if err != nil {
		return Unexpected(err)
	}

	if !allowed {
		r.logger.Debug("Message rate limited",
			zap.String("connection_id", p.ConnectionID()),
			zap.String("peer_id", p.LogID()))

		return Reject(ReasonRateLimited)
	}

	return r.next.ProcessMessage(ctx, msg, p)
}

func (r *rateLimited) DisconnectPeer(ctx context.Context, p *peer.Peer) {
	r.limiter.Reset(p.ConnectionID())
	r.next.DisconnectPeer(ctx, p)
}

func (r *rateLimited) Stats(ctx context.Context) (map[string]interface{}, error) {
	if sp, ok := r.next.(StatsProvider); ok {
		return sp.Stats(ctx)
	}

	return map[string]interface{}{}, nil
}
