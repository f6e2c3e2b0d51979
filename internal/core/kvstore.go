package core

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by KVStore.Get when the key is absent or expired.
var ErrKeyNotFound = errors.New("key not found")

// KVStore defines the interface for key-value store operations.
// Implementations back the read-through cache (Redis or DynamoDB).
type KVStore interface {
	// Get retrieves a value by key from the store.
	// Returns ErrKeyNotFound (possibly wrapped) if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a key-value pair with an optional TTL.
	// If ttl is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the store.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the store.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the connection to the KV store and releases resources.
	Close() error
}
