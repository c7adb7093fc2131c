package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "boltzchat:session:"

// RedisConfig selects the Redis server backing a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // 0 keeps sessions forever
}

// RedisStore keeps session senders in Redis so several agent replicas can
// share them.
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection with a PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreFromClient(rdb, cfg.TTL), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, sessionID, sender string) error {
	if err := s.rdb.Set(ctx, keyPrefix+sessionID, sender, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (string, error) {
	sender, err := s.rdb.Get(ctx, keyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return "", fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return sender, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
