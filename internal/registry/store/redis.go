package store

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	customerrors "github.com/actual-software/socket-gateway/internal/errors"
)

const (
	defaultKeyPrefix = "swarm:"

	// ErrCodeStoreFailed marks a failed store round trip.
	ErrCodeStoreFailed = "STORE_FAILED"
)

// RedisStore keeps one seeders set and one leechers set per swarm plus an
// index set of swarm hashes, so several gateway instances can share swarms.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
}

// NewRedisStore creates a Redis-backed store on client.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisStore{
		client: client,
		logger: logger,
		prefix: prefix,
	}
}

func (r *RedisStore) seedersKey(infoHash string) string {
	return r.prefix + infoHash + ":seeders"
}

func (r *RedisStore) leechersKey(infoHash string) string {
	return r.prefix + infoHash + ":leechers"
}

func (r *RedisStore) indexKey() string {
	return r.prefix + "index"
}

func (r *RedisStore) Join(ctx context.Context, infoHash, member string, complete bool) error {
	add, remove := r.leechersKey(infoHash), r.seedersKey(infoHash)
	if complete {
		add, remove = remove, add
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, remove, member)
		pipe.SAdd(ctx, add, member)
		pipe.SAdd(ctx, r.indexKey(), infoHash)

		return nil
	})
	if err != nil {
		return wrapStoreError(ctx, err, "join", infoHash)
	}

	return nil
}

func (r *RedisStore) Leave(ctx context.Context, infoHash, member string) error {
	var seeders, leechers *redis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, r.seedersKey(infoHash), member)
		pipe.SRem(ctx, r.leechersKey(infoHash), member)
		seeders = pipe.SCard(ctx, r.seedersKey(infoHash))
		leechers = pipe.SCard(ctx, r.leechersKey(infoHash))

		return nil
	})
	if err != nil {
		return wrapStoreError(ctx, err, "leave", infoHash)
	}

	if seeders.Val() == 0 && leechers.Val() == 0 {
		if err := r.client.SRem(ctx, r.indexKey(), infoHash).Err(); err != nil {
			return wrapStoreError(ctx, err, "leave", infoHash)
		}
	}

	return nil
}

func (r *RedisStore) Counts(ctx context.Context, infoHash string) (Counts, error) {
	seeders, leechers, err := r.cardinality(ctx, infoHash)
	if err != nil {
		return Counts{}, wrapStoreError(ctx, err, "counts", infoHash)
	}

	return Counts{Complete: int(seeders), Incomplete: int(leechers)}, nil
}

func (r *RedisStore) Stats(ctx context.Context) (Stats, error) {
	hashes, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, wrapStoreError(ctx, err, "stats", "")
	}

	stats := Stats{Swarms: len(hashes)}

	for _, infoHash := range hashes {
		seeders, leechers, err := r.cardinality(ctx, infoHash)
		if err != nil {
			return Stats{}, wrapStoreError(ctx, err, "stats", infoHash)
		}

		stats.Peers += int(seeders + leechers)
	}

	return stats, nil
}

func (r *RedisStore) cardinality(ctx context.Context, infoHash string) (int64, int64, error) {
	pipe := r.client.Pipeline()
	seeders := pipe.SCard(ctx, r.seedersKey(infoHash))
	leechers := pipe.SCard(ctx, r.leechersKey(infoHash))

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	return seeders.Val(), leechers.Val(), nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func wrapStoreError(ctx context.Context, err error, operation, infoHash string) *customerrors.GatewayError {
	r := customerrors.WrapContext(ctx, err, "swarm store "+operation+" failed").
		WithComponent("store").
		WithOperation("store_" + operation).
		WithCode(ErrCodeStoreFailed)

	if infoHash != "" {
		r = r.WithContext("info_hash", infoHash)
	}

	return r
}
