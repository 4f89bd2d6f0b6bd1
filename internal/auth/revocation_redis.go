package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/halcyonlabs/authgate/internal/infrastructure/config"
)

// revocationKeyPrefix namespaces revocation entries in Redis so the
// instance can be shared with other services.
const revocationKeyPrefix = "authgate:revoked:"

// RedisRevocationStore is a RevocationStore backed by Redis. Entries use
// SET with an expiry equal to the token's remaining lifetime, so Redis
// handles eviction and the blacklist never grows beyond live tokens.
//
// Use this store when running multiple authgate replicas: a logout on
// one replica must be visible to all of them.
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore connects to Redis and verifies the connection
// with a ping.
func NewRedisRevocationStore(cfg config.RedisConfig) (*RedisRevocationStore, error) {
	dialTimeout := time.Duration(cfg.DialTimeout) * time.Second
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisRevocationStore{client: client}, nil
}

// Record marks a jti as revoked until expiresAt.
// Already-expired entries are skipped; SET with a non-positive TTL would error.
func (s *RedisRevocationStore) Record(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, revocationKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("recording revocation: %w", err)
	}
	return nil
}

// Contains reports whether a jti is currently revoked.
func (s *RedisRevocationStore) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return n > 0, nil
}

// Close shuts down the Redis connection pool.
func (s *RedisRevocationStore) Close() error {
	return s.client.Close()
}
