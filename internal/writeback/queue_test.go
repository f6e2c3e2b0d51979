package writeback

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/kvstore"
	"github.com/rzpsarthak13/transferdesk/internal/registry"
)

func change(op core.OperationType, key string) *core.RideChange {
	return &core.RideChange{ID: "evt-" + key, Table: "data", Operation: op, Key: key}
}

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue(10)
	ctx := context.Background()

	for _, key := range []string{"1", "2", "3"} {
		if err := q.Enqueue(ctx, change(core.OperationUpdate, key)); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", key, err)
		}
	}
	if q.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", q.Size())
	}

	got, err := q.Dequeue(ctx, 2)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if len(got) != 2 || got[0].Key != "1" || got[1].Key != "2" {
		t.Fatalf("Dequeue() = %+v, want keys 1,2", got)
	}

	got, _ = q.Dequeue(ctx, 10)
	if len(got) != 1 || got[0].Key != "3" {
		t.Fatalf("Dequeue() = %+v, want key 3", got)
	}

	got, _ = q.Dequeue(ctx, 10)
	if len(got) != 0 {
		t.Fatalf("Dequeue() on empty queue = %d changes, want 0", len(got))
	}
}

func TestMemoryQueue_FullAndClosed(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	if err := q.Enqueue(ctx, change(core.OperationCreate, "1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(ctx, change(core.OperationCreate, "2")); !errors.Is(err, ErrMemoryQueueFull) {
		t.Fatalf("Enqueue() on full queue error = %v, want ErrMemoryQueueFull", err)
	}

	q.Close()
	if err := q.Enqueue(ctx, change(core.OperationCreate, "3")); !errors.Is(err, ErrMemoryQueueClosed) {
		t.Fatalf("Enqueue() after Close error = %v, want ErrMemoryQueueClosed", err)
	}
	got, _ := q.Dequeue(ctx, 10)
	if len(got) != 1 {
		t.Errorf("Dequeue() after Close = %d changes, want the buffered one", len(got))
	}
}

func TestValidateChange(t *testing.T) {
	tests := []struct {
		name   string
		change *core.RideChange
	}{
		{"nil", nil},
		{"no table", &core.RideChange{Operation: core.OperationDelete}},
		{"no operation", &core.RideChange{Table: "data"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateChange(tt.change); !errors.Is(err, ErrInvalidChange) {
				t.Errorf("validateChange() = %v, want ErrInvalidChange", err)
			}
		})
	}
}

func newRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := kvstore.NewRedisKVStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })
	return NewRedisQueue(store, "test:changes"), mr
}

func TestRedisQueue_RoundTrip(t *testing.T) {
	q, mr := newRedisQueue(t)
	ctx := context.Background()

	c := change(core.OperationUpdate, "42")
	c.Fields = []string{"DRIVER", "PRICE"}
	if err := q.Enqueue(ctx, c); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if c.Timestamp.IsZero() {
		t.Error("Enqueue() did not stamp the change")
	}
	if q.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", q.Size())
	}

	// A foreign entry in the list must not block the drain.
	mr.Lpush("test:changes", "not json")

	got, err := q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Dequeue() = %d changes, want 1", len(got))
	}
	if got[0].Key != "42" || got[0].Operation != core.OperationUpdate || len(got[0].Fields) != 2 {
		t.Errorf("Dequeue() = %+v", got[0])
	}
	if q.Size() != 0 {
		t.Errorf("Size() after drain = %d, want 0", q.Size())
	}
}

func TestRedisQueue_Closed(t *testing.T) {
	q, _ := newRedisQueue(t)
	q.Close()

	if err := q.Enqueue(context.Background(), change(core.OperationCreate, "1")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() error = %v, want ErrQueueClosed", err)
	}
	if _, err := q.Dequeue(context.Background(), 1); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Dequeue() error = %v, want ErrQueueClosed", err)
	}
}

func TestNewQueue(t *testing.T) {
	q, err := NewQueue(registry.InternalWriteBackConfig{QueueType: "memory", QueueBufferSize: 5}, nil)
	if err != nil {
		t.Fatalf("NewQueue(memory) error = %v", err)
	}
	if _, ok := q.(*MemoryQueue); !ok {
		t.Errorf("NewQueue(memory) = %T, want *MemoryQueue", q)
	}

	if _, err := NewQueue(registry.InternalWriteBackConfig{QueueType: "redis"}, nil); err == nil {
		t.Error("NewQueue(redis) without lists should fail")
	}
	if _, err := NewQueue(registry.InternalWriteBackConfig{QueueType: "kafka"}, nil); err == nil {
		t.Error("NewQueue(kafka) without brokers should fail")
	}
	if _, err := NewQueue(registry.InternalWriteBackConfig{QueueType: "carrier-pigeon"}, nil); err == nil {
		t.Error("NewQueue(unknown) should fail")
	}
}
