package writeback

import (
	"fmt"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/registry"
)

// NewQueue builds the change queue selected by cfg.QueueType. lists is
// only consulted for the redis queue and may be nil otherwise.
func NewQueue(cfg registry.InternalWriteBackConfig, lists ListOperations) (core.ChangeQueue, error) {
	switch cfg.QueueType {
	case "", "memory":
		return NewMemoryQueue(cfg.QueueBufferSize), nil
	case "redis":
		if lists == nil {
			return nil, fmt.Errorf("redis queue requires a redis kv store")
		}
		return NewRedisQueue(lists, cfg.RedisQueueKey), nil
	case "kafka":
		return NewKafkaQueue(KafkaConfigFromRegistry(cfg.KafkaConfig))
	default:
		return nil, fmt.Errorf("unsupported queue type: %s", cfg.QueueType)
	}
}
