package writeback

import (
	"context"
	"errors"
	"sync"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

var (
	// ErrMemoryQueueClosed is returned when trying to enqueue to a closed memory queue.
	ErrMemoryQueueClosed = errors.New("memory queue is closed")

	// ErrMemoryQueueFull is returned when the buffer has no room left.
	ErrMemoryQueueFull = errors.New("memory queue is full")
)

// MemoryQueue implements core.ChangeQueue with a buffered channel. Changes
// are lost on restart, which only costs a cache entry living until its TTL.
type MemoryQueue struct {
	queue  chan *core.RideChange
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a new in-memory change queue holding up to
// bufferSize changes.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &MemoryQueue{
		queue: make(chan *core.RideChange, bufferSize),
	}
}

// Enqueue adds a change without blocking.
func (q *MemoryQueue) Enqueue(ctx context.Context, change *core.RideChange) error {
	if err := validateChange(change); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrMemoryQueueClosed
	}

	select {
	case q.queue <- change:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrMemoryQueueFull
	}
}

// Dequeue returns up to batchSize changes in FIFO order without blocking.
func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.RideChange, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	changes := make([]*core.RideChange, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		select {
		case change, ok := <-q.queue:
			if !ok {
				return changes, nil
			}
			changes = append(changes, change)
		case <-ctx.Done():
			return changes, ctx.Err()
		default:
			return changes, nil
		}
	}
	return changes, nil
}

// Size returns the current number of changes in the queue.
func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

// Close closes the queue. Buffered changes can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}
