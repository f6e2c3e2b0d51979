package writeback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

// fakeBroker is an in-process topic shared by the fake writer and reader.
type fakeBroker struct {
	mu        sync.Mutex
	messages  []kafka.Message
	next      int
	committed []int64
	writeErr  error
}

func (b *fakeBroker) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	for _, m := range msgs {
		m.Offset = int64(len(b.messages))
		b.messages = append(b.messages, m)
	}
	return nil
}

func (b *fakeBroker) ReadMessage(ctx context.Context) (kafka.Message, error) {
	b.mu.Lock()
	if b.next < len(b.messages) {
		m := b.messages[b.next]
		b.next++
		b.mu.Unlock()
		return m, nil
	}
	b.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (b *fakeBroker) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range msgs {
		b.committed = append(b.committed, m.Offset)
	}
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func TestKafkaQueue_ProduceAndConsume(t *testing.T) {
	broker := &fakeBroker{}
	q := NewKafkaQueueFromClients(broker, broker, "rides", "test", 20*time.Millisecond)
	ctx := context.Background()

	if err := q.Enqueue(ctx, change(core.OperationDelete, "7")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if q.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", q.Size())
	}

	msg := broker.messages[0]
	if string(msg.Key) != "data" {
		t.Errorf("message key = %q, want table name", msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["operation"] != "DELETE" || headers["table"] != "data" {
		t.Errorf("headers = %v", headers)
	}

	broker.messages = append(broker.messages, kafka.Message{Offset: 1, Value: []byte("{broken")})

	got, err := q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if len(got) != 1 || got[0].Key != "7" || got[0].Operation != core.OperationDelete {
		t.Fatalf("Dequeue() = %+v", got)
	}
	if len(broker.committed) != 2 {
		t.Errorf("committed offsets = %v, want both messages committed", broker.committed)
	}
	if q.Size() != 0 {
		t.Errorf("Size() after consume = %d, want 0", q.Size())
	}
}

func TestKafkaQueue_ProduceFailure(t *testing.T) {
	broker := &fakeBroker{writeErr: errors.New("leader not available")}
	q := NewKafkaQueueFromClients(broker, broker, "rides", "test", 0)

	if err := q.Enqueue(context.Background(), change(core.OperationCreate, "1")); err == nil {
		t.Fatal("Enqueue() should surface the producer error")
	}
	if q.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after a failed produce", q.Size())
	}
}

func TestKafkaQueue_Closed(t *testing.T) {
	broker := &fakeBroker{}
	q := NewKafkaQueueFromClients(broker, broker, "rides", "test", 0)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := q.Enqueue(context.Background(), change(core.OperationCreate, "1")); !errors.Is(err, ErrKafkaQueueClosed) {
		t.Errorf("Enqueue() error = %v, want ErrKafkaQueueClosed", err)
	}
}
