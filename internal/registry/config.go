package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every configuration environment variable.
const EnvPrefix = "TRANSFERDESK_"

// ConfigValidator validates the backend-specific part of the configuration.
// Each KV store backend registers one from its init().
type ConfigValidator interface {
	// Validate validates the internal configuration for this KV store type.
	// It should validate only the KVStore-specific configuration.
	Validate(config *InternalConfig) error

	// Type returns the type identifier for this validator (e.g., "redis", "dynamodb").
	Type() string
}

var (
	validatorRegistry      = make(map[string]ConfigValidator)
	validatorRegistryMutex sync.RWMutex
)

// RegisterValidator registers a config validator.
// Panics if validator is nil, type is empty, or type is already registered.
func RegisterValidator(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}
	validatorRegistry[validator.Type()] = validator
}

// GetValidator retrieves a validator by type.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

// ConfigManager handles loading and managing configuration from various sources.
// Sources are layered: defaults, then an optional file, then environment.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: defaultInternalConfig(),
	}
}

func defaultInternalConfig() *InternalConfig {
	return &InternalConfig{
		Server: InternalServerConfig{
			Addr:            ":5000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigin:      "http://localhost:5173",
			RateLimit:       20,
			RateBurst:       40,
		},
		Auth: InternalAuthConfig{
			CookieName: "token",
		},
		Database: InternalDatabaseConfig{
			Host:              "localhost",
			Port:              3306,
			MaxOpenConns:      25,
			MaxIdleConns:      5,
			ConnMaxLifetime:   5 * time.Minute,
			ConnMaxIdleTime:   10 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		KVStore: InternalKVStoreConfig{
			Type: "redis",
			RedisConfig: InternalRedisConfig{
				Endpoints:    []string{"localhost:6379"},
				DB:           0,
				PoolSize:     10,
				MinIdleConns: 2,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			CacheTTL:     10 * time.Minute,
			Namespace:    "transferdesk",
		},
		WriteBack: InternalWriteBackConfig{
			QueueType:       "memory",
			QueueBufferSize: 10000,
			RedisQueueKey:   "transferdesk:ride-changes",
			BatchSize:       100,
			DrainRate:       50,
			PollInterval:    500 * time.Millisecond,
			KafkaConfig: InternalKafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "transferdesk-ride-changes",
				GroupID:         "transferdesk-drainer",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,
				MaxMessageBytes: 1000000,
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024,
				MaxWait:         100 * time.Millisecond,
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data on top of the defaults.
// The result is not validated until Validate is called, so environment
// overrides can still fill in required values.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	cm.config = config
	return nil
}

// LoadFromJSON loads configuration from JSON data on top of the defaults.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	cm.config = config
	return nil
}

// LoadFromEnv applies environment overrides to the current configuration.
// Environment variables follow the pattern: TRANSFERDESK_<SECTION>_<KEY>
// Examples:
//   - TRANSFERDESK_DATABASE_HOST=localhost
//   - TRANSFERDESK_DATABASE_SCHEMA_NAME=legacy_rides
//   - TRANSFERDESK_KVSTORE_ENDPOINTS=localhost:6379
//   - TRANSFERDESK_WRITEBACK_QUEUE_TYPE=kafka
//   - TRANSFERDESK_RIDES_SNAPSHOT_READS=true
//
// A malformed value is an error rather than being silently ignored.
func (cm *ConfigManager) LoadFromEnv() error {
	config := *cm.config
	e := &envReader{}

	// Server
	e.str("SERVER_ADDR", &config.Server.Addr)
	e.duration("SERVER_READ_TIMEOUT", &config.Server.ReadTimeout)
	e.duration("SERVER_WRITE_TIMEOUT", &config.Server.WriteTimeout)
	e.duration("SERVER_SHUTDOWN_TIMEOUT", &config.Server.ShutdownTimeout)
	e.str("SERVER_CORS_ORIGIN", &config.Server.CORSOrigin)
	e.number("SERVER_RATE_LIMIT", &config.Server.RateLimit)
	e.integer("SERVER_RATE_BURST", &config.Server.RateBurst)

	// Auth
	e.str("AUTH_JWT_SECRET", &config.Auth.JWTSecret)
	e.str("AUTH_COOKIE_NAME", &config.Auth.CookieName)

	// Database
	e.str("DATABASE_HOST", &config.Database.Host)
	e.integer("DATABASE_PORT", &config.Database.Port)
	e.str("DATABASE_DATABASE", &config.Database.Database)
	e.str("DATABASE_USERNAME", &config.Database.Username)
	e.str("DATABASE_PASSWORD", &config.Database.Password)
	e.str("DATABASE_SCHEMA_NAME", &config.Database.SchemaName)
	e.integer("DATABASE_MAX_OPEN_CONNS", &config.Database.MaxOpenConns)
	e.integer("DATABASE_MAX_IDLE_CONNS", &config.Database.MaxIdleConns)
	e.duration("DATABASE_CONNECTION_TIMEOUT", &config.Database.ConnectionTimeout)

	// KV store
	e.str("KVSTORE_TYPE", &config.KVStore.Type)
	e.list("KVSTORE_ENDPOINTS", &config.KVStore.RedisConfig.Endpoints)
	e.str("KVSTORE_PASSWORD", &config.KVStore.RedisConfig.Password)
	e.integer("KVSTORE_DB", &config.KVStore.RedisConfig.DB)
	e.integer("KVSTORE_POOL_SIZE", &config.KVStore.RedisConfig.PoolSize)
	e.integer("KVSTORE_MAX_RETRIES", &config.KVStore.MaxRetries)
	e.duration("KVSTORE_CACHE_TTL", &config.KVStore.CacheTTL)
	e.str("KVSTORE_NAMESPACE", &config.KVStore.Namespace)
	e.str("KVSTORE_DYNAMODB_REGION", &config.KVStore.DynamoDBConfig.Region)
	e.str("KVSTORE_DYNAMODB_TABLE_NAME", &config.KVStore.DynamoDBConfig.TableName)
	e.str("KVSTORE_DYNAMODB_ENDPOINT", &config.KVStore.DynamoDBConfig.Endpoint)

	// Write-back
	e.str("WRITEBACK_QUEUE_TYPE", &config.WriteBack.QueueType)
	e.integer("WRITEBACK_QUEUE_BUFFER_SIZE", &config.WriteBack.QueueBufferSize)
	e.integer("WRITEBACK_BATCH_SIZE", &config.WriteBack.BatchSize)
	e.integer("WRITEBACK_DRAIN_RATE", &config.WriteBack.DrainRate)
	e.duration("WRITEBACK_POLL_INTERVAL", &config.WriteBack.PollInterval)
	e.list("WRITEBACK_KAFKA_BROKERS", &config.WriteBack.KafkaConfig.Brokers)
	e.str("WRITEBACK_KAFKA_TOPIC", &config.WriteBack.KafkaConfig.Topic)
	e.str("WRITEBACK_KAFKA_GROUP_ID", &config.WriteBack.KafkaConfig.GroupID)

	// Rides
	e.flag("RIDES_SNAPSHOT_READS", &config.Rides.SnapshotReads)

	if e.err != nil {
		return e.err
	}
	cm.config = &config
	return nil
}

// Validate checks the current configuration.
func (cm *ConfigManager) Validate() error {
	if err := cm.validateConfig(cm.config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// validateConfig validates the configuration and returns an error if invalid.
// KV store settings are checked by the validator registered for their type.
func (cm *ConfigManager) validateConfig(config *InternalConfig) error {
	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be non-negative")
	}
	if config.Server.RateLimit > 0 && config.Server.RateBurst <= 0 {
		return fmt.Errorf("server.rate_burst must be greater than 0 when rate limiting is enabled")
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if config.Auth.CookieName == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}

	if config.KVStore.Type == "" {
		return fmt.Errorf("kvstore.type is required")
	}
	validator, exists := GetValidator(config.KVStore.Type)
	if !exists {
		return fmt.Errorf("unsupported KV store type: %s", config.KVStore.Type)
	}
	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("kvstore validation failed: %w", err)
	}
	if config.KVStore.CacheTTL < 0 {
		return fmt.Errorf("kvstore.cache_ttl must be non-negative")
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Database.Port <= 0 || config.Database.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database.username is required")
	}
	if config.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be greater than 0")
	}

	switch config.WriteBack.QueueType {
	case "memory", "redis", "kafka":
	default:
		return fmt.Errorf("writeback.queue_type must be 'memory', 'redis', or 'kafka'")
	}
	if config.WriteBack.BatchSize <= 0 {
		return fmt.Errorf("writeback.batch_size must be greater than 0")
	}
	if config.WriteBack.DrainRate <= 0 {
		return fmt.Errorf("writeback.drain_rate must be greater than 0")
	}
	if config.WriteBack.PollInterval <= 0 {
		return fmt.Errorf("writeback.poll_interval must be greater than 0")
	}
	if config.WriteBack.QueueType == "memory" && config.WriteBack.QueueBufferSize <= 0 {
		return fmt.Errorf("writeback.queue_buffer_size must be greater than 0")
	}
	if config.WriteBack.QueueType == "redis" && config.WriteBack.RedisQueueKey == "" {
		return fmt.Errorf("writeback.redis_queue_key is required when queue_type is 'redis'")
	}
	if config.WriteBack.QueueType == "kafka" {
		if len(config.WriteBack.KafkaConfig.Brokers) == 0 {
			return fmt.Errorf("kafka_config.brokers is required when queue_type is 'kafka'")
		}
		if config.WriteBack.KafkaConfig.Topic == "" {
			return fmt.Errorf("kafka_config.topic is required when queue_type is 'kafka'")
		}
	}

	return nil
}

// envReader collects the first parse error while applying overrides.
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	val, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (e *envReader) fail(key, val string, err error) {
	e.err = fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, key, val, err)
}

func (e *envReader) str(key string, dst *string) {
	if val, ok := e.lookup(key); ok {
		*dst = val
	}
}

func (e *envReader) list(key string, dst *[]string) {
	if val, ok := e.lookup(key); ok {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}
}

func (e *envReader) integer(key string, dst *int) {
	if val, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			e.fail(key, val, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) number(key string, dst *float64) {
	if val, ok := e.lookup(key); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			e.fail(key, val, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) flag(key string, dst *bool) {
	if val, ok := e.lookup(key); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			e.fail(key, val, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if val, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			e.fail(key, val, err)
			return
		}
		*dst = d
	}
}
