package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// How many optimistic CAS rounds Update attempts before giving up.
const maxUpdateAttempts = 5

// setIfUnchangedScript performs the compare-and-set leg of Update: the new
// value is only written when the stored value still matches what the caller
// read. ARGV[4] is "1" when the caller observed the key as absent.
var setIfUnchangedScript = redis.NewScript(`
	local cur = redis.call("GET", KEYS[1])
	if ARGV[4] == "1" then
		if cur ~= false then
			return 0
		end
	elseif cur ~= ARGV[1] then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
`)

// RedisCache is a Redis-backed implementation of Cache. All instances sharing
// one Redis see the same keys, which is what makes the sync result store safe
// across multiple worker processes.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisCacheConfig holds configuration for the Redis cache.
type RedisCacheConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisCache creates a Redis-backed cache and verifies connectivity.
func NewRedisCache(cfg RedisCacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "storesync"
	}

	log.Printf("[RedisCache] Started - DB:%d, prefix:%s", cfg.DB, keyPrefix)
	return &RedisCache{client: client, keyPrefix: keyPrefix}, nil
}

// NewRedisCacheFromClient wraps an existing client (shared with the queue).
func NewRedisCacheFromClient(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "storesync"
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisCache) fullKey(key string) string {
	return c.keyPrefix + ":" + key
}

// Get retrieves a value by key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores a value with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.fullKey(key), value, ttl).Err()
}

// Delete removes a value by key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.fullKey(key)).Err()
}

// Exists checks if a key exists in the cache.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.fullKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update atomically replaces the value at key with fn(current) using an
// optimistic compare-and-set loop. A concurrent writer changing the key
// between the read and the conditional write causes a re-read and retry.
func (c *RedisCache) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) ([]byte, error) {
	full := c.fullKey(key)

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		old, err := c.client.Get(ctx, full).Bytes()
		absent := "0"
		if err == redis.Nil {
			old = nil
			absent = "1"
		} else if err != nil {
			return nil, err
		}

		next, err := fn(old)
		if err != nil {
			if errors.Is(err, ErrSkipUpdate) {
				return old, nil
			}
			return nil, err
		}

		ok, err := setIfUnchangedScript.Run(ctx, c.client,
			[]string{full}, old, next, ttl.Milliseconds(), absent).Int()
		if err != nil {
			return nil, err
		}
		if ok == 1 {
			return next, nil
		}
		// lost the race, re-read and retry
	}

	return nil, fmt.Errorf("update %s: too many concurrent writers", key)
}

// Clear removes all entries under the cache prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
