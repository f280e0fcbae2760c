// Package cache provides a Redis cache guarded by a circuit breaker and an
// in-memory implementation used as a fallback and in tests.
//
// Values are JSON encoded, so any cache entry can be read back by either
// implementation.
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	c, err := cache.NewRedisCache(cache.RedisConfig{Client: client})
//
//	_ = c.Set(ctx, "revoked:"+jti, true, ttl)
//	var revoked bool
//	err = c.Get(ctx, "revoked:"+jti, &revoked)
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

var (
	ErrCacheMiss        = errors.New("cache miss")
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrInvalidKey       = errors.New("invalid cache key: key cannot be empty")
	ErrInvalidTTL       = errors.New("invalid ttl: must be positive")
)

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > 512 {
		return fmt.Errorf("cache key too long: max 512 characters, got %d", len(key))
	}
	return nil
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

// Cache defines the interface for caching implementations
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Stats() CacheStats
	Close() error
}

// CacheStats provides cache metrics
type CacheStats struct {
	Hits        uint64
	Misses      uint64
	Sets        uint64
	Deletes     uint64
	Errors      uint64
	CircuitOpen bool
}

type cacheMetrics struct {
	hits    atomic.Uint64
	misses  atomic.Uint64
	sets    atomic.Uint64
	deletes atomic.Uint64
	errors  atomic.Uint64
}

func (m *cacheMetrics) snapshot() CacheStats {
	return CacheStats{
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Sets:    m.sets.Load(),
		Deletes: m.deletes.Load(),
		Errors:  m.errors.Load(),
	}
}

// RedisCache stores values in Redis. Calls go through a circuit breaker so a
// failing Redis is skipped quickly instead of timing out every request.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[string]
	metrics cacheMetrics
}

// RedisConfig configures RedisCache.
type RedisConfig struct {
	Client       *redis.Client
	MaxFailures  uint32
	ResetTimeout time.Duration
}

// NewRedisCache verifies the connection and returns a Redis backed cache.
func NewRedisCache(config RedisConfig) (*RedisCache, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := config.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "redis-cache",
		Timeout: config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		// a miss is a successful round trip
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
	})

	return &RedisCache{
		client:  config.Client,
		breaker: breaker,
	}, nil
}

func (c *RedisCache) execute(fn func() (string, error)) (string, error) {
	val, err := c.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return val, err
}

// Get retrieves and unmarshals a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if dest == nil {
		return errors.New("destination cannot be nil")
	}

	val, err := c.execute(func() (string, error) {
		return c.client.Get(ctx, key).Result()
	})
	if errors.Is(err, redis.Nil) {
		c.metrics.misses.Add(1)
		return ErrCacheMiss
	}
	if err != nil {
		c.metrics.errors.Add(1)
		return fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.metrics.errors.Add(1)
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	c.metrics.hits.Add(1)
	return nil
}

// Set marshals and stores a value in cache
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.metrics.errors.Add(1)
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	_, err = c.execute(func() (string, error) {
		return c.client.Set(ctx, key, data, ttl).Result()
	})
	if err != nil {
		c.metrics.errors.Add(1)
		return fmt.Errorf("cache set failed: %w", err)
	}

	c.metrics.sets.Add(1)
	return nil
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := c.execute(func() (string, error) {
		return "", c.client.Del(ctx, key).Err()
	})
	if err != nil {
		c.metrics.errors.Add(1)
		return fmt.Errorf("cache delete failed: %w", err)
	}

	c.metrics.deletes.Add(1)
	return nil
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Stats returns a snapshot of cache counters
func (c *RedisCache) Stats() CacheStats {
	stats := c.metrics.snapshot()
	stats.CircuitOpen = c.breaker.State() == gobreaker.StateOpen
	return stats
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// InMemoryCache is a process local cache with lazy and periodic expiry.
type InMemoryCache struct {
	data    map[string]cacheItem
	mu      sync.RWMutex
	metrics cacheMetrics
	stopCh  chan struct{}
	once    sync.Once
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache() *InMemoryCache {
	c := &InMemoryCache{
		data:   make(map[string]cacheItem),
		stopCh: make(chan struct{}),
	}

	go c.cleanup()

	return c
}

func (c *InMemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.data {
				if now.After(item.expiration) {
					delete(c.data, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

// Get retrieves a value from in-memory cache
func (c *InMemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := validateKey(key); err != nil {
		return err
	}

	c.mu.RLock()
	item, exists := c.data[key]
	c.mu.RUnlock()

	if !exists || time.Now().After(item.expiration) {
		c.metrics.misses.Add(1)
		return ErrCacheMiss
	}

	if err := json.Unmarshal(item.value, dest); err != nil {
		c.metrics.errors.Add(1)
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	c.metrics.hits.Add(1)
	return nil
}

// Set stores a value in in-memory cache
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.metrics.errors.Add(1)
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	c.mu.Lock()
	c.data[key] = cacheItem{value: data, expiration: time.Now().Add(ttl)}
	c.mu.Unlock()

	c.metrics.sets.Add(1)
	return nil
}

// Delete removes a value from in-memory cache
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()

	c.metrics.deletes.Add(1)
	return nil
}

// Ping always succeeds
func (c *InMemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Stats returns a snapshot of cache counters
func (c *InMemoryCache) Stats() CacheStats {
	return c.metrics.snapshot()
}

// Close stops the expiry loop
func (c *InMemoryCache) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return nil
}
