package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/repository"
)

const noncePrefix = "google:oauth:nonce:"

// RedisNonceStore implements NonceStore backed by Redis. Nonces are
// single-use: ConsumeNonce deletes atomically via GETDEL.
type RedisNonceStore struct {
	client redis.UniversalClient
}

var _ repository.NonceStore = (*RedisNonceStore)(nil)

// NewRedisNonceStore constructs a Redis-backed nonce store.
func NewRedisNonceStore(client redis.UniversalClient) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

// SaveNonce stores the nonce with a TTL; expiry bounds how long a pending
// authorization stays redeemable.
func (s *RedisNonceStore) SaveNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	if err := s.client.Set(ctx, noncePrefix+nonce, "1", ttl).Err(); err != nil {
		return fmt.Errorf("persist nonce: %w", err)
	}
	return nil
}

// ConsumeNonce removes the nonce and reports whether it was present.
func (s *RedisNonceStore) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	err := s.client.GetDel(ctx, noncePrefix+nonce).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume nonce: %w", err)
	}
	return true, nil
}
