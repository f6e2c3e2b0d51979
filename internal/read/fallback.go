package read

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

// DefaultLoadTimeout bounds a shared load once it is detached from the
// caller that started it.
const DefaultLoadTimeout = 30 * time.Second

// FallbackHandler runs the loader on a cache miss and populates the cache
// with the result. Concurrent misses for the same key share one load.
//
// Every key carries a generation that Invalidate bumps. A load only stores
// its result when the generation it started under is still current, so an
// invalidation that lands while a load is in flight is not undone by it.
type FallbackHandler struct {
	kvStore     core.KVStore
	ttl         time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
	logger      zerolog.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

// NewFallbackHandler creates a new fallback handler.
func NewFallbackHandler(kvStore core.KVStore, ttl time.Duration) *FallbackHandler {
	return &FallbackHandler{
		kvStore:     kvStore,
		ttl:         ttl,
		loadTimeout: DefaultLoadTimeout,
		generations: make(map[string]uint64),
		logger:      log.With().Str("component", "cache").Logger(),
	}
}

func (fh *FallbackHandler) generation(cacheKey string) uint64 {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	return fh.generations[cacheKey]
}

// bump starts a new generation for cacheKey.
func (fh *FallbackHandler) bump(cacheKey string) {
	fh.mu.Lock()
	fh.generations[cacheKey]++
	fh.mu.Unlock()
}

// Load runs load for cacheKey, stores the encoded value and returns it.
// Errors from load are returned as is and nothing is cached.
//
// The load runs detached from ctx's cancellation, bounded by the load
// timeout, because callers joining the flight depend on it too.
func (fh *FallbackHandler) Load(ctx context.Context, cacheKey string, load LoadFunc) ([]byte, error) {
	gen := fh.generation(cacheKey)
	flightKey := cacheKey + "#" + strconv.FormatUint(gen, 10)

	v, err, shared := fh.group.Do(flightKey, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fh.loadTimeout)
		defer cancel()

		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode value for %s: %w", cacheKey, err)
		}
		fh.populateCache(loadCtx, cacheKey, gen, encoded)
		return encoded, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		fh.logger.Debug().Str("key", cacheKey).Msg("shared in-flight load")
	}
	return v.([]byte), nil
}

// populateCache stores encoded under cacheKey if gen is still current. A
// failure only costs the next reader a reload, so it is logged and swallowed.
func (fh *FallbackHandler) populateCache(ctx context.Context, cacheKey string, gen uint64, encoded []byte) {
	if fh.kvStore == nil {
		return
	}
	if fh.generation(cacheKey) != gen {
		fh.logger.Debug().Str("key", cacheKey).Msg("invalidated during load, not caching")
		return
	}
	if err := fh.kvStore.Set(ctx, cacheKey, encoded, fh.ttl); err != nil {
		fh.logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to populate cache")
		return
	}
	// An invalidation between the check and the write would otherwise leave
	// the stale value behind.
	if fh.generation(cacheKey) != gen {
		if err := fh.kvStore.Delete(ctx, cacheKey); err != nil {
			fh.logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to drop stale cache entry")
		}
	}
}
