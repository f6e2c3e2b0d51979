package read

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

// LoadFunc produces the value for a cache miss. The value must be JSON
// serializable.
type LoadFunc func(ctx context.Context) (interface{}, error)

// CacheHandler serves derived read models (price lookups, option lists)
// from the KV store and falls back to the loader on a miss.
//
// The cache is best-effort: a KV failure is logged and the loader runs as if
// the key were missing. A nil KV store disables caching altogether.
type CacheHandler struct {
	kvStore    core.KVStore
	keyBuilder *KeyBuilder
	fallback   *FallbackHandler
	logger     zerolog.Logger
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(kvStore core.KVStore, namespace string, ttl time.Duration) *CacheHandler {
	keyBuilder := NewKeyBuilder(namespace)
	return &CacheHandler{
		kvStore:    kvStore,
		keyBuilder: keyBuilder,
		fallback:   NewFallbackHandler(kvStore, ttl),
		logger:     log.With().Str("component", "cache").Logger(),
	}
}

// GetOrLoad decodes the cached value for (table, key) into dest. On a miss it
// runs load once per key across concurrent callers, stores the result and
// decodes it into dest.
func (ch *CacheHandler) GetOrLoad(ctx context.Context, table string, key interface{}, dest interface{}, load LoadFunc) error {
	cacheKey := ch.keyBuilder.BuildKey(table, key)

	if ch.kvStore != nil {
		value, err := ch.kvStore.Get(ctx, cacheKey)
		switch {
		case err == nil:
			if err := json.Unmarshal(value, dest); err == nil {
				observeLookup(table, "hit")
				return nil
			}
			ch.logger.Warn().Str("key", cacheKey).Msg("discarding undecodable cache entry")
		case errors.Is(err, core.ErrKeyNotFound):
		default:
			observeLookup(table, "error")
			ch.logger.Warn().Err(err).Str("key", cacheKey).Msg("cache read failed, loading from store")
		}
	}

	observeLookup(table, "miss")
	value, err := ch.fallback.Load(ctx, cacheKey, load)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(value, dest); err != nil {
		return fmt.Errorf("failed to decode loaded value: %w", err)
	}
	return nil
}

// Invalidate removes the cached value for (table, key). Loads already in
// flight for the key will not store their result.
func (ch *CacheHandler) Invalidate(ctx context.Context, table string, key interface{}) error {
	if ch.kvStore == nil {
		return nil
	}
	cacheKey := ch.keyBuilder.BuildKey(table, key)
	ch.fallback.bump(cacheKey)
	if err := ch.kvStore.Delete(ctx, cacheKey); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", cacheKey, err)
	}
	ch.logger.Debug().Str("key", cacheKey).Msg("invalidated")
	return nil
}

// Exists checks if a value is cached for (table, key).
func (ch *CacheHandler) Exists(ctx context.Context, table string, key interface{}) (bool, error) {
	if ch.kvStore == nil {
		return false, nil
	}
	return ch.kvStore.Exists(ctx, ch.keyBuilder.BuildKey(table, key))
}

// KeyBuilder builds cache keys in the format: {namespace}:{table}:{key}
type KeyBuilder struct {
	namespace string
}

// NewKeyBuilder creates a new key builder.
func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// BuildKey constructs a cache key for the given table and key value.
func (kb *KeyBuilder) BuildKey(table string, key interface{}) string {
	keyStr := fmt.Sprintf("%v", key)
	if kb.namespace != "" {
		return fmt.Sprintf("%s:%s:%s", kb.namespace, table, keyStr)
	}
	return fmt.Sprintf("%s:%s", table, keyStr)
}
