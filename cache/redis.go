package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wattpad-downloader/model"
)

const keyPrefix = "wpd:build:"

// RedisBackend is the shared store: results survive process restarts and the
// SetNX lock keeps the one-build-per-fingerprint invariant across replicas.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(ctx context.Context, addr, password string, db int) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("%w: ping %s: %v", model.ErrCacheBackend, addr, err)
	}
	return &RedisBackend{client: client}, nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %v", model.ErrCacheBackend, err)
	}
	return data, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", model.ErrCacheBackend, err)
	}
	return nil
}

// TryLock acquires the cross-process build lock for a fingerprint. The TTL
// matches the build deadline so a crashed builder cannot wedge the key.
func (r *RedisBackend) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+key+":lock", "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: lock: %v", model.ErrCacheBackend, err)
	}
	return ok, nil
}

func (r *RedisBackend) Unlock(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyPrefix+key+":lock").Err(); err != nil {
		return fmt.Errorf("%w: unlock: %v", model.ErrCacheBackend, err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
