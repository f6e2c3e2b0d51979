package writeback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/registry"
)

var (
	// ErrKafkaQueueClosed is returned when trying to enqueue to a closed Kafka queue.
	ErrKafkaQueueClosed = errors.New("kafka queue is closed")
)

// MessageWriter is the producer side of kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the consumer side of kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue implements core.ChangeQueue on a Kafka topic. Every ride
// change becomes one message keyed by table, so changes to one table stay
// ordered within a partition.
type KafkaQueue struct {
	writer      MessageWriter
	reader      MessageReader
	topic       string
	groupID     string
	readTimeout time.Duration
	mu          sync.RWMutex
	closed      bool
	size        int // approximate, counts only what this process produced
	logger      zerolog.Logger
}

// KafkaQueueConfig holds configuration for Kafka queue.
type KafkaQueueConfig struct {
	Brokers         []string
	Topic           string
	GroupID         string
	BatchSize       int
	BatchTimeout    time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	RequiredAcks    int // 0, 1, or -1 (all)
	MaxMessageBytes int
	MinBytes        int
	MaxBytes        int
	MaxWait         time.Duration
}

// KafkaConfigFromRegistry converts the file configuration.
func KafkaConfigFromRegistry(cfg registry.InternalKafkaConfig) KafkaQueueConfig {
	return KafkaQueueConfig{
		Brokers:         cfg.Brokers,
		Topic:           cfg.Topic,
		GroupID:         cfg.GroupID,
		BatchSize:       cfg.BatchSize,
		BatchTimeout:    cfg.BatchTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		RequiredAcks:    cfg.RequiredAcks,
		MaxMessageBytes: cfg.MaxMessageBytes,
		MinBytes:        cfg.MinBytes,
		MaxBytes:        cfg.MaxBytes,
		MaxWait:         cfg.MaxWait,
	}
}

// NewKafkaQueue creates a Kafka-backed change queue.
func NewKafkaQueue(config KafkaQueueConfig) (*KafkaQueue, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if config.GroupID == "" {
		config.GroupID = "transferdesk-drainer"
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
	}
	if config.MaxMessageBytes > 0 {
		writer.BatchBytes = int64(config.MaxMessageBytes)
	}

	// A new consumer group starts at the beginning of the topic; an
	// existing one resumes from its committed offset.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	q := NewKafkaQueueFromClients(writer, reader, config.Topic, config.GroupID, config.ReadTimeout)
	q.logger.Info().
		Strs("brokers", config.Brokers).
		Str("topic", config.Topic).
		Str("group", config.GroupID).
		Msg("kafka queue initialized")
	return q, nil
}

// NewKafkaQueueFromClients builds a queue over existing producer and
// consumer handles.
func NewKafkaQueueFromClients(writer MessageWriter, reader MessageReader, topic, groupID string, readTimeout time.Duration) *KafkaQueue {
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	return &KafkaQueue{
		writer:      writer,
		reader:      reader,
		topic:       topic,
		groupID:     groupID,
		readTimeout: readTimeout,
		logger:      log.With().Str("component", "kafka").Logger(),
	}
}

// Enqueue produces change to the topic.
func (q *KafkaQueue) Enqueue(ctx context.Context, change *core.RideChange) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrKafkaQueueClosed
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

	message := kafka.Message{
		Key:   []byte(change.Table),
		Value: data,
		Time:  change.Timestamp,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(change.Operation)},
			{Key: "table", Value: []byte(change.Table)},
		},
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, message); err != nil {
		q.logger.Error().Err(err).Str("topic", q.topic).Dur("took", time.Since(start)).Msg("produce failed")
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	q.mu.Lock()
	q.size++
	q.mu.Unlock()

	q.logger.Debug().
		Str("operation", string(change.Operation)).
		Str("table", change.Table).
		Str("key", change.Key).
		Dur("took", time.Since(start)).
		Msg("produced ride change")
	return nil
}

// Dequeue consumes up to batchSize changes. It stops early when no
// message arrives within the read timeout. Offsets are committed per
// message; undecodable messages are committed and skipped.
func (q *KafkaQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.RideChange, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil, ErrKafkaQueueClosed
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	changes := make([]*core.RideChange, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		readCtx, cancel := context.WithTimeout(ctx, q.readTimeout)
		message, err := q.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			q.logger.Error().Err(err).Str("topic", q.topic).Msg("consume failed")
			if len(changes) == 0 {
				return nil, fmt.Errorf("failed to read message from Kafka: %w", err)
			}
			break
		}

		var change core.RideChange
		if err := json.Unmarshal(message.Value, &change); err != nil {
			q.logger.Warn().Err(err).
				Int("partition", message.Partition).
				Int64("offset", message.Offset).
				Msg("skipping undecodable message")
		} else {
			changes = append(changes, &change)
		}

		if err := q.reader.CommitMessages(ctx, message); err != nil {
			q.logger.Warn().Err(err).
				Int("partition", message.Partition).
				Int64("offset", message.Offset).
				Msg("offset commit failed")
		}
	}

	if n := len(changes); n > 0 {
		q.mu.Lock()
		if q.size >= n {
			q.size -= n
		} else {
			q.size = 0
		}
		q.mu.Unlock()
	}
	return changes, nil
}

// Size returns an approximate number of changes in the queue.
func (q *KafkaQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Close closes the producer and the consumer.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if err := q.writer.Close(); err != nil {
		q.logger.Error().Err(err).Msg("failed to close writer")
	}
	if err := q.reader.Close(); err != nil {
		q.logger.Error().Err(err).Msg("failed to close reader")
		return err
	}
	return nil
}
