// Package store keeps swarm membership for the built-in registry.
package store

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/config"
	customerrors "github.com/actual-software/socket-gateway/internal/errors"
)

const pingTimeout = 5 * time.Second

// Counts is the population of one swarm.
type Counts struct {
	Complete   int `json:"complete"`
	Incomplete int `json:"incomplete"`
}

// Stats summarises the whole store.
type Stats struct {
	Swarms int `json:"swarms"`
	Peers  int `json:"peers"`
}

// Store records which peers belong to which swarm.
type Store interface {
	// Join adds member to the swarm, or moves it between seeders and leechers.
	Join(ctx context.Context, infoHash, member string, complete bool) error
	// Leave removes member from the swarm. Leaving a swarm the member is not in is a no-op.
	Leave(ctx context.Context, infoHash, member string) error
	Counts(ctx context.Context, infoHash string) (Counts, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// CreateSwarmStore creates a store based on configuration.
func CreateSwarmStore(ctx context.Context, cfg config.RegistryConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case config.ProviderRedis:
		client, err := ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}

		return NewRedisStore(client, cfg.Redis.KeyPrefix, logger), nil

	case config.ProviderMemory, "":
		return NewMemoryStore(), nil

	default:
		return nil, customerrors.New(
			customerrors.TypeValidation,
			"unsupported registry provider: "+cfg.Provider,
		).WithComponent("store").
			WithContext("provider", cfg.Provider)
	}
}

// ConnectRedis parses cfg, opens a client and checks connectivity.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, customerrors.New(customerrors.TypeValidation, "redis URL is required").
			WithComponent("store")
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, customerrors.Wrap(err, "failed to parse Redis URL").
			WithComponent("store").
			WithContext("redis_url", cfg.URL)
	}

	if cfg.Password != "" {
		opt.Password = cfg.Password
	}

	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, customerrors.WrapWithType(err, customerrors.TypeUnavailable, "failed to connect to Redis").
			WithComponent("store").
			WithOperation("redis_connect")
	}

	return client, nil
}
