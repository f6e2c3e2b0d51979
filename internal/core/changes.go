package core

import (
	"context"
	"time"
)

// OperationType represents the type of write applied to a logical table.
type OperationType string

const (
	// OperationCreate represents an INSERT.
	OperationCreate OperationType = "CREATE"

	// OperationUpdate represents an UPDATE.
	OperationUpdate OperationType = "UPDATE"

	// OperationDelete represents a DELETE.
	OperationDelete OperationType = "DELETE"
)

// RideChange records one successful mutation of a logical table. Changes
// are published after the store acknowledged the write; consumers use them
// to invalidate derived state.
type RideChange struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Table is the logical table that was written.
	Table string `json:"table"`

	// Operation is the type of write (CREATE, UPDATE, DELETE).
	Operation OperationType `json:"operation"`

	// Key is the record id as reported by the store.
	Key string `json:"key"`

	// Fields lists the business field names touched by the write.
	Fields []string `json:"fields,omitempty"`

	// Timestamp is when the write was acknowledged.
	Timestamp time.Time `json:"timestamp"`
}

// ChangeQueue buffers RideChange events between the request path and the
// background drainer.
type ChangeQueue interface {
	// Enqueue adds a change to the queue.
	Enqueue(ctx context.Context, change *RideChange) error

	// Dequeue retrieves up to batchSize changes.
	// Returns an empty slice if none are available.
	Dequeue(ctx context.Context, batchSize int) ([]*RideChange, error)

	// Size returns the approximate number of queued changes.
	Size() int

	// Close closes the queue and releases resources.
	Close() error
}
