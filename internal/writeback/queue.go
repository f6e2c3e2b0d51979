package writeback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

var (
	// ErrQueueClosed is returned when trying to use a closed queue.
	ErrQueueClosed = errors.New("change queue is closed")

	// ErrInvalidChange is returned when a change is missing required fields.
	ErrInvalidChange = errors.New("invalid ride change")
)

// ListOperations is the Redis list surface the RedisQueue needs.
// kvstore.RedisKVStore implements it.
type ListOperations interface {
	// ListPush adds a value to the end of a list (RPUSH).
	ListPush(ctx context.Context, key string, value []byte) error

	// ListPop removes and returns the first element from a list (LPOP).
	// Returns nil if the list is empty.
	ListPop(ctx context.Context, key string) ([]byte, error)

	// ListLength returns the length of a list (LLEN).
	ListLength(ctx context.Context, key string) (int64, error)
}

func validateChange(change *core.RideChange) error {
	if change == nil {
		return ErrInvalidChange
	}
	if change.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidChange)
	}
	if change.Operation == "" {
		return fmt.Errorf("%w: operation is required", ErrInvalidChange)
	}
	return nil
}

// RedisQueue implements core.ChangeQueue on a Redis list, so changes
// survive a restart and can be drained by any instance.
type RedisQueue struct {
	ops    ListOperations
	key    string
	closed atomic.Bool
	logger zerolog.Logger
}

// NewRedisQueue creates a queue stored under key.
func NewRedisQueue(ops ListOperations, key string) *RedisQueue {
	if key == "" {
		key = "transferdesk:ride-changes"
	}
	return &RedisQueue{
		ops:    ops,
		key:    key,
		logger: log.With().Str("component", "redis_queue").Logger(),
	}
}

// Enqueue serializes change as JSON and appends it to the list.
func (q *RedisQueue) Enqueue(ctx context.Context, change *core.RideChange) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if err := validateChange(change); err != nil {
		return err
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now()
	}

	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal ride change: %w", err)
	}
	if err := q.ops.ListPush(ctx, q.key, data); err != nil {
		return fmt.Errorf("failed to enqueue ride change: %w", err)
	}
	return nil
}

// Dequeue pops up to batchSize changes. Entries that fail to decode are
// dropped with a warning.
func (q *RedisQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.RideChange, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	changes := make([]*core.RideChange, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		data, err := q.ops.ListPop(ctx, q.key)
		if err != nil {
			return changes, fmt.Errorf("failed to dequeue ride change: %w", err)
		}
		if data == nil {
			break
		}

		var change core.RideChange
		if err := json.Unmarshal(data, &change); err != nil {
			q.logger.Warn().Err(err).Msg("dropping undecodable ride change")
			continue
		}
		changes = append(changes, &change)
	}
	return changes, nil
}

// Size returns the current length of the list, or 0 if it cannot be read.
func (q *RedisQueue) Size() int {
	if q.closed.Load() {
		return 0
	}
	length, err := q.ops.ListLength(context.Background(), q.key)
	if err != nil {
		return 0
	}
	return int(length)
}

// Close closes the queue. The list itself is left in Redis.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
