package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/codec"
	"github.com/actual-software/socket-gateway/internal/peer"
	"github.com/actual-software/socket-gateway/internal/ratelimit"
)

type countingRegistry struct {
	mu          sync.Mutex
	processed   int
	disconnects []*peer.Peer
}

func (c *countingRegistry) ProcessMessage(context.Context, codec.Message, *peer.Peer) *Failure {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.processed++

	return nil
}

func (c *countingRegistry) DisconnectPeer(_ context.Context, p *peer.Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disconnects = append(c.disconnects, p)
}

func (c *countingRegistry) Stats(context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"processed": c.processed}, nil
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, ratelimit.Limit) (bool, error) {
	return false, errors.New("limiter backend down")
}

func (failingLimiter) Reset(string) {}

func TestFailure(t *testing.T) {
	rejection := Rejectf("unknown action %q", "dance")
	assert.True(t, rejection.IsRejection())
	assert.Equal(t, `rejection: unknown action "dance"`, rejection.Error())
	assert.NoError(t, rejection.Unwrap())

	cause := errors.New("store offline")
	unexpected := Unexpected(cause)
	assert.False(t, unexpected.IsRejection())
	assert.Equal(t, "unexpected: store offline", unexpected.Error())
	assert.ErrorIs(t, unexpected, cause)

	assert.Equal(t, "internal error", Unexpected(nil).Reason)

	var nilFailure *Failure
	assert.False(t, nilFailure.IsRejection())
}

func TestRateLimited_RejectsBeyondLimit(t *testing.T) {
	inner := &countingRegistry{}
	limiter := ratelimit.CreateLocalMemoryRateLimiter(zap.NewNop())
	reg := RateLimited(inner, limiter, ratelimit.Limit{RequestsPerMinute: 2}, zap.NewNop())

	p := peer.New("conn-1", nil)
	ctx := context.Background()

	assert.Nil(t, reg.ProcessMessage(ctx, codec.Message{}, p))
	assert.Nil(t, reg.ProcessMessage(ctx, codec.Message{}, p))

	failure := reg.ProcessMessage(ctx, codec.Message{}, p)
	require.NotNil(t, failure)
	assert.True(t, failure.IsRejection())
	assert.Equal(t, ReasonRateLimited, failure.Reason)
	assert.Equal(t, 2, inner.processed)

	other := peer.New("conn-2", nil)
	assert.Nil(t, reg.ProcessMessage(ctx, codec.Message{}, other))
}

func TestRateLimited_DisconnectResetsAndForwards(t *testing.T) {
	inner := &countingRegistry{}
	limiter := ratelimit.CreateLocalMemoryRateLimiter(zap.NewNop())
	reg := RateLimited(inner, limiter, ratelimit.Limit{RequestsPerMinute: 1}, zap.NewNop())

	p := peer.New("conn-1", nil)
	ctx := context.Background()

	assert.Nil(t, reg.ProcessMessage(ctx, codec.Message{}, p))
	assert.NotNil(t, reg.ProcessMessage(ctx, codec.Message{}, p))

	reg.DisconnectPeer(ctx, p)
	require.Len(t, inner.disconnects, 1)
	assert.Same(t, p, inner.disconnects[0])

	assert.Nil(t, reg.ProcessMessage(ctx, codec.Message{}, p))
}

func TestRateLimited_LimiterErrorIsUnexpected(t *testing.T) {
	inner := &countingRegistry{}
	reg := RateLimited(inner, failingLimiter{}, ratelimit.Limit{RequestsPerMinute: 1}, zap.NewNop())

	failure := reg.ProcessMessage(context.Background(), codec.Message{}, peer.New("conn-1", nil))
	require.NotNil(t, failure)
	assert.Equal(t, KindUnexpected, failure.Kind)
	assert.Zero(t, inner.processed)
}

func TestRateLimited_DisabledReturnsInner(t *testing.T) {
	inner := &countingRegistry{}

	assert.Same(t, Registry(inner), RateLimited(inner, nil, ratelimit.Limit{RequestsPerMinute: 5}, zap.NewNop()))
	assert.Same(t, Registry(inner),
		RateLimited(inner, ratelimit.CreateLocalMemoryRateLimiter(zap.NewNop()), ratelimit.Limit{}, zap.NewNop()))
}

func TestRateLimited_ForwardsStats(t *testing.T) {
	inner := &countingRegistry{}
	reg := RateLimited(inner, ratelimit.CreateLocalMemoryRateLimiter(zap.NewNop()),
		ratelimit.Limit{RequestsPerMinute: 5}, zap.NewNop())

	sp, ok := reg.(StatsProvider)
	require.True(t, ok)

	stats, err := sp.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats["processed"])
}
