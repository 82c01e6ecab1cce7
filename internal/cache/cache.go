// Package cache stores TfL static data (lines, line stations, station
// detail) between requests. Two backends exist: an in-process LRU for a
// single server and redis for several servers sharing one upstream quota.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/redis/go-redis/v9"
	"tubeboard.app/internal/clock"
)

// Cache is a byte-valued store with per-entry expiry.
type Cache interface {
	// Get returns the stored value and true, or false when the key is
	// missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Memory is an LRU cache backed by gcache.
type Memory struct {
	c gcache.Cache
}

// NewMemory builds an LRU with room for size entries. Expiry follows clk.
func NewMemory(size int, clk clock.Clock) *Memory {
	if size <= 0 {
		size = 1024
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Memory{
		c: gcache.New(size).LRU().Clock(clk).Build(),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := m.c.Get(key)
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("cache entry %q has type %T", key, v)
	}
	return b, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return m.c.Set(key, value)
	}
	return m.c.SetWithExpire(key, value, ttl)
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Remove(key)
	return nil
}

func (m *Memory) Close() error {
	m.c.Purge()
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	return m.c.Len(true)
}

// Redis stores entries in a redis server under a key prefix.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to addr and verifies the connection with PING.
func NewRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedisWithClient(rdb, prefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Fetch is a JSON read-through: it returns the cached value for key, or
// calls load, stores its result for ttl and returns it. Cache failures are
// reported through onErr and never fail the call.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error), onErr func(error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	if raw, ok, err := c.Get(ctx, key); err != nil {
		report(onErr, fmt.Errorf("cache get %s: %w", key, err))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		} else {
			report(onErr, fmt.Errorf("cache decode %s: %w", key, err))
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		report(onErr, fmt.Errorf("cache encode %s: %w", key, err))
		return v, nil
	}
	if err := c.Set(ctx, key, raw, ttl); err != nil {
		report(onErr, fmt.Errorf("cache set %s: %w", key, err))
	}
	return v, nil
}

func report(onErr func(error), err error) {
	if onErr != nil {
		onErr(err)
	}
}
