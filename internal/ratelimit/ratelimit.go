// Package ratelimit provides per-key message rate limiting backed by Redis or memory.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	customerrors "github.com/actual-software/socket-gateway/internal/errors"
)

const (
	rateLimitWindow    = time.Minute
	defaultBurstWindow = 10 * time.Second
	defaultKeyPrefix   = "ratelimit:"
)

// Limit describes the allowed message rate for one key.
type Limit struct {
	RequestsPerMinute int
	Burst             int
}

// Enabled reports whether the limit restricts anything.
func (l Limit) Enabled() bool {
	return l.RequestsPerMinute > 0
}

// RateLimiter defines the rate limiting interface.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit Limit) (bool, error)
	Reset(key string)
}

// RedisRateLimiter implements rate limiting using Redis fixed windows.
type RedisRateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
}

// CreateRedisBackedRateLimiter creates a Redis-backed distributed rate limiter.
func CreateRedisBackedRateLimiter(client *redis.Client, prefix string, logger *zap.Logger) *RedisRateLimiter {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisRateLimiter{
		client: client,
		logger: logger,
		prefix: prefix,
	}
}

// Allow checks whether one more message for key fits in the limit.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	if !limit.Enabled() {
		return true, nil
	}

	now := time.Now()

	count, err := r.incrementWindow(ctx,
		fmt.Sprintf("%s%s:%d", r.prefix, key, now.Unix()/int64(rateLimitWindow/time.Second)),
		rateLimitWindow)
	if err != nil {
		return false, err
	}

	if count > int64(limit.RequestsPerMinute) {
		r.logger.Debug("Rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", limit.RequestsPerMinute))

		return false, nil
	}

	if limit.Burst <= 0 {
		return true, nil
	}

	burstCount, err := r.incrementWindow(ctx,
		fmt.Sprintf("%sburst:%s:%d", r.prefix, key, now.Unix()/int64(defaultBurstWindow/time.Second)),
		defaultBurstWindow)
	if err != nil {
		return false, err
	}

	if burstCount > int64(limit.Burst) {
		r.logger.Debug("Burst limit exceeded",
			zap.String("key", key),
			zap.Int64("burst_count", burstCount),
			zap.Int("burst_limit", limit.Burst))

		return false, nil
	}

	return true, nil
}

func (r *RedisRateLimiter) incrementWindow(ctx context.Context, redisKey string, window time.Duration) (int64, error) {
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to execute rate limit pipeline",
			zap.String("key", redisKey),
			zap.Error(err))

		return 0, customerrors.Wrap(err, "rate limit check failed").
			WithComponent("ratelimit")
	}

	return incr.Val(), nil
}

// Reset forgets the history of key. Memory limiters drop it immediately; Redis
// windows expire on their own.
func (r *RedisRateLimiter) Reset(string) {}

// InMemoryRateLimiter is a sliding-window limiter for single-instance deployments.
type InMemoryRateLimiter struct {
	requests    map[string][]time.Time
	logger      *zap.Logger
	mu          sync.Mutex
	burstWindow time.Duration
}

// CreateLocalMemoryRateLimiter creates a local in-memory rate limiter.
func CreateLocalMemoryRateLimiter(logger *zap.Logger) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		requests:    make(map[string][]time.Time),
		logger:      logger,
		burstWindow: defaultBurstWindow,
	}
}

// Allow checks if a message is allowed (in-memory implementation).
func (r *InMemoryRateLimiter) Allow(_ context.Context, key string, limit Limit) (bool, error) {
	if !limit.Enabled() {
		return true, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rateLimitWindow)

	valid := r.requests[key][:0]
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	r.requests[key] = valid

	if len(valid) >= limit.RequestsPerMinute {
		r.logger.Debug("Rate limit exceeded (in-memory)",
			zap.String("key", key),
			zap.Int("count", len(valid)),
			zap.Int("limit", limit.RequestsPerMinute))

		return false, nil
	}

	if limit.Burst > 0 {
		burstStart := now.Add(-r.burstWindow)
		burstCount := 0

		for _, t := range valid {
			if t.After(burstStart) {
				burstCount++
			}
		}

		if burstCount >= limit.Burst {
			r.logger.Debug("Burst limit exceeded (in-memory)",
				zap.String("key", key),
				zap.Int("burst_count", burstCount),
				zap.Int("burst_limit", limit.Burst))

			return false, nil
		}
	}

	r.requests[key] = append(r.requests[key], now)

	return true, nil
}

// Reset forgets the history of key.
func (r *InMemoryRateLimiter) Reset(key string) {
	r.mu.Lock()
	delete(r.requests, key)
	r.mu.Unlock()
}

// SetBurstWindow sets the burst window duration.
func (r *InMemoryRateLimiter) SetBurstWindow(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.burstWindow = duration
}
