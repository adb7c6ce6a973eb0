package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tgdrive/filestore/internal/config"
	"github.com/vmihailenco/msgpack/v5"
)

func NewRedisClient(ctx context.Context, conf *config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            conf.RedisAddr,
		Password:        conf.RedisPass,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisCache(ctx context.Context, client *redis.Client) *RedisCache {
	return &RedisCache{client: client, ctx: ctx}
}

func (r *RedisCache) Get(key string, value any) error {
	data, err := r.client.Get(r.ctx, prefix+key).Bytes()
	if isMiss(err) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(data, value)
}

func (r *RedisCache) Set(key string, value any, expiration time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, prefix+key, data, expiration).Err()
}

func (r *RedisCache) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = prefix + key
	}
	return r.client.Del(r.ctx, prefixed...).Err()
}
