package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/tgdrive/filestore/internal/config"
	"github.com/vmihailenco/msgpack/v5"
)

const prefix = "filestore:"

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Cacher interface {
	Get(key string, value any) error
	Set(key string, value any, expiration time.Duration) error
	Delete(keys ...string) error
}

// NewCache returns a redis backed cache when an address is configured and
// an in-process one otherwise.
func NewCache(ctx context.Context, conf *config.CacheConfig) (Cacher, error) {
	if conf.RedisAddr == "" {
		return NewMemoryCache(conf.MaxSize), nil
	}
	client, err := NewRedisClient(ctx, conf)
	if err != nil {
		return nil, errors.Wrap(err, "connect redis")
	}
	return NewRedisCache(ctx, client), nil
}

type MemoryCache struct {
	cache *freecache.Cache
}

func NewMemoryCache(size int) *MemoryCache {
	return &MemoryCache{cache: freecache.NewCache(size)}
}

func (m *MemoryCache) Get(key string, value any) error {
	data, err := m.cache.Get([]byte(prefix + key))
	if errors.Is(err, freecache.ErrNotFound) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(data, value)
}

func (m *MemoryCache) Set(key string, value any, expiration time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	return m.cache.Set([]byte(prefix+key), data, int(expiration.Seconds()))
}

func (m *MemoryCache) Delete(keys ...string) error {
	for _, key := range keys {
		m.cache.Del([]byte(prefix + key))
	}
	return nil
}

// Fetch reads key from cache, falling back to fn and storing its result.
// Cache write failures are ignored.
func Fetch[T any](c Cacher, key string, expiration time.Duration, fn func() (T, error)) (T, error) {
	var value T
	err := c.Get(key, &value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, ErrMiss) {
		var zero T
		return zero, err
	}
	value, err = fn()
	if err != nil {
		var zero T
		return zero, err
	}
	_ = c.Set(key, value, expiration)
	return value, nil
}

func Key(args ...any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	return strings.Join(parts, ":")
}

var _ Cacher = (*RedisCache)(nil)
var _ Cacher = (*MemoryCache)(nil)

func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
