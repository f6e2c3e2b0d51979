package registry

import (
	"time"
)

// InternalConfig is the full process configuration.
type InternalConfig struct {
	Server    InternalServerConfig    `yaml:"server" json:"server"`
	Auth      InternalAuthConfig      `yaml:"auth" json:"auth"`
	Database  InternalDatabaseConfig  `yaml:"database" json:"database"`
	KVStore   InternalKVStoreConfig   `yaml:"kvstore" json:"kvstore"`
	WriteBack InternalWriteBackConfig `yaml:"writeback" json:"writeback"`
	Rides     InternalRidesConfig     `yaml:"rides" json:"rides"`
}

// InternalServerConfig contains the HTTP listener settings.
type InternalServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	CORSOrigin      string        `yaml:"cors_origin" json:"cors_origin"`
	RateLimit       float64       `yaml:"rate_limit" json:"rate_limit"` // requests per second per client, 0 disables
	RateBurst       int           `yaml:"rate_burst" json:"rate_burst"`
}

// InternalAuthConfig contains the token gate settings.
type InternalAuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret" json:"jwt_secret"`
	CookieName string `yaml:"cookie_name" json:"cookie_name"`
}

// InternalKVStoreConfig contains configuration for the key-value store
// backing the read-through cache.
type InternalKVStoreConfig struct {
	Type           string                 `yaml:"type" json:"type"`
	RedisConfig    InternalRedisConfig    `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`
	DynamoDBConfig InternalDynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`
	MaxRetries     int                    `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout    time.Duration          `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout    time.Duration          `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout   time.Duration          `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	CacheTTL       time.Duration          `yaml:"cache_ttl" json:"cache_ttl"`
	Namespace      string                 `yaml:"namespace" json:"namespace"`
}

// InternalRedisConfig contains Redis-specific configuration.
type InternalRedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int      `yaml:"db" json:"db"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// InternalDynamoDBConfig contains DynamoDB-specific configuration.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// InternalDatabaseConfig contains configuration for the MySQL store.
type InternalDatabaseConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`

	// SchemaName overrides the database consulted for column metadata.
	// Empty means the connection's default database.
	SchemaName string `yaml:"schema_name" json:"schema_name"`

	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// InternalWriteBackConfig contains the ride change queue and drainer
// configuration.
type InternalWriteBackConfig struct {
	QueueType       string              `yaml:"queue_type" json:"queue_type"`
	QueueBufferSize int                 `yaml:"queue_buffer_size" json:"queue_buffer_size"`
	RedisQueueKey   string              `yaml:"redis_queue_key" json:"redis_queue_key"`
	BatchSize       int                 `yaml:"batch_size" json:"batch_size"`
	DrainRate       int                 `yaml:"drain_rate" json:"drain_rate"` // changes per second
	PollInterval    time.Duration       `yaml:"poll_interval" json:"poll_interval"`
	KafkaConfig     InternalKafkaConfig `yaml:"kafka_config" json:"kafka_config"`
}

// InternalKafkaConfig contains Kafka-specific configuration.
type InternalKafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	GroupID         string        `yaml:"group_id" json:"group_id"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// InternalRidesConfig contains ride query behaviour switches.
type InternalRidesConfig struct {
	// SnapshotReads runs the count and page queries of a search inside one
	// read-only REPEATABLE READ transaction.
	SnapshotReads bool `yaml:"snapshot_reads" json:"snapshot_reads"`
}
