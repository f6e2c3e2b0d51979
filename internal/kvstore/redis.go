package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/registry"
)

var errClosed = errors.New("KV store is closed")

// RedisKVStore implements the core.KVStore interface using Redis.
type RedisKVStore struct {
	client *redis.Client
	closed atomic.Bool
	logger zerolog.Logger
}

// NewRedisKVStore connects to the first endpoint and pings it.
func NewRedisKVStore(config KVStoreConfig) (*RedisKVStore, error) {
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Endpoints[0],
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisKVStoreFromClient(client), nil
}

// NewRedisKVStoreFromClient wraps an existing client.
func NewRedisKVStoreFromClient(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{
		client: client,
		logger: log.With().Str("component", "redis").Logger(),
	}
}

// Get retrieves a value by key. A missing key yields core.ErrKeyNotFound.
func (r *RedisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.closed.Load() {
		return nil, errClosed
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, key)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("get failed")
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	r.logger.Debug().Str("key", key).Int("bytes", len(val)).Msg("get")
	return val, nil
}

// Set stores a key-value pair. A zero ttl means no expiration.
func (r *RedisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.closed.Load() {
		return errClosed
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("set failed")
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	r.logger.Debug().Str("key", key).Int("bytes", len(value)).Dur("ttl", ttl).Msg("set")
	return nil
}

// Delete removes a key from the store.
func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	if r.closed.Load() {
		return errClosed
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key exists in the store.
func (r *RedisKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if r.closed.Load() {
		return false, errClosed
	}

	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

// Ping verifies the server is reachable.
func (r *RedisKVStore) Ping(ctx context.Context) error {
	if r.closed.Load() {
		return errClosed
	}
	return r.client.Ping(ctx).Err()
}

// Close closes the connection to the KV store.
func (r *RedisKVStore) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.client.Close()
}

// ListPush adds a value to the end of a list (RPUSH).
func (r *RedisKVStore) ListPush(ctx context.Context, key string, value []byte) error {
	if r.closed.Load() {
		return errClosed
	}
	return r.client.RPush(ctx, key, value).Err()
}

// ListPop removes and returns the first element from a list (LPOP).
// Returns nil, nil when the list is empty.
func (r *RedisKVStore) ListPop(ctx context.Context, key string) ([]byte, error) {
	if r.closed.Load() {
		return nil, errClosed
	}
	val, err := r.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// ListLength returns the length of a list (LLEN).
func (r *RedisKVStore) ListLength(ctx context.Context, key string) (int64, error) {
	if r.closed.Load() {
		return 0, errClosed
	}
	return r.client.LLen(ctx, key).Result()
}

// RedisKVStoreFactory creates Redis KV stores.
type RedisKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *RedisKVStoreFactory) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration.
func (f *RedisKVStoreFactory) Validate(config KVStoreConfig) error {
	if config.Type != "redis" {
		return fmt.Errorf("invalid type for Redis factory: %s", config.Type)
	}
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if config.DB < 0 || config.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", config.DB)
	}
	if config.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", config.PoolSize)
	}
	if config.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", config.DialTimeout)
	}
	return nil
}

// Create creates a new Redis KV store instance.
func (f *RedisKVStoreFactory) Create(config KVStoreConfig) (core.KVStore, error) {
	store, err := NewRedisKVStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis KV store: %w", err)
	}
	return store, nil
}

// RedisConfigValidator validates the redis part of the process config.
type RedisConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *RedisConfigValidator) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration in the internal config.
func (v *RedisConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	kvConfig := config.KVStore
	if kvConfig.Type != "redis" {
		return fmt.Errorf("invalid type for Redis validator: %s", kvConfig.Type)
	}

	redisConfig := kvConfig.RedisConfig
	if len(redisConfig.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if redisConfig.DB < 0 || redisConfig.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", redisConfig.DB)
	}
	if redisConfig.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", redisConfig.PoolSize)
	}
	if redisConfig.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", redisConfig.MinIdleConns)
	}
	if kvConfig.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", kvConfig.DialTimeout)
	}
	if kvConfig.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be greater than 0, got: %v", kvConfig.ReadTimeout)
	}
	if kvConfig.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be greater than 0, got: %v", kvConfig.WriteTimeout)
	}
	if kvConfig.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", kvConfig.MaxRetries)
	}
	return nil
}

func init() {
	RegisterFactory(&RedisKVStoreFactory{})
	registry.RegisterValidator(&RedisConfigValidator{})
}
