package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/registry"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDBKVStore implements the core.KVStore interface using AWS DynamoDB.
// Items carry a numeric "ttl" attribute; expired items are treated as
// missing even before DynamoDB's TTL sweeper removes them.
type DynamoDBKVStore struct {
	client    DynamoDBAPI
	tableName string
	closed    atomic.Bool
	now       func() time.Time
	logger    zerolog.Logger
}

// NewDynamoDBKVStore creates a DynamoDB KV store and checks the table exists.
func NewDynamoDBKVStore(cfg KVStoreConfig) (*DynamoDBKVStore, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	var clientOptions []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	store := NewDynamoDBKVStoreFromClient(dynamodb.NewFromConfig(awsCfg, clientOptions...), cfg.TableName)

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// NewDynamoDBKVStoreFromClient wraps an existing client.
func NewDynamoDBKVStoreFromClient(client DynamoDBAPI, tableName string) *DynamoDBKVStore {
	return &DynamoDBKVStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		logger:    log.With().Str("component", "dynamodb").Logger(),
	}
}

func (d *DynamoDBKVStore) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

func (d *DynamoDBKVStore) expired(item map[string]types.AttributeValue) bool {
	ttlAttr, ok := item["ttl"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlAttr.Value, 10, 64)
	if err != nil {
		return false
	}
	return d.now().Unix() > ttl
}

// Get retrieves a value by key. Missing or expired items yield
// core.ErrKeyNotFound.
func (d *DynamoDBKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed.Load() {
		return nil, errClosed
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.itemKey(key),
	})
	if err != nil {
		d.logger.Error().Err(err).Str("key", key).Msg("get failed")
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if result.Item == nil || d.expired(result.Item) {
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, key)
	}

	valueMember, ok := result.Item["value"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("invalid value format for key %s", key)
	}
	d.logger.Debug().Str("key", key).Int("bytes", len(valueMember.Value)).Msg("get")
	return valueMember.Value, nil
}

// Set stores a key-value pair. A zero ttl means no expiration.
func (d *DynamoDBKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.closed.Load() {
		return errClosed
	}

	now := d.now()
	item := map[string]types.AttributeValue{
		"key":        &types.AttributeValueMemberS{Value: key},
		"value":      &types.AttributeValueMemberB{Value: value},
		"created_at": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
	}
	if ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)}
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}); err != nil {
		d.logger.Error().Err(err).Str("key", key).Msg("set failed")
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from the store.
func (d *DynamoDBKVStore) Delete(ctx context.Context, key string) error {
	if d.closed.Load() {
		return errClosed
	}

	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.itemKey(key),
	}); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if an unexpired item exists for key.
func (d *DynamoDBKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if d.closed.Load() {
		return false, errClosed
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(d.tableName),
		Key:                  d.itemKey(key),
		ProjectionExpression: aws.String("#k, #t"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
			"#t": "ttl",
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return result.Item != nil && !d.expired(result.Item), nil
}

// Ping checks the table is reachable.
func (d *DynamoDBKVStore) Ping(ctx context.Context) error {
	if d.closed.Load() {
		return errClosed
	}
	if _, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	}); err != nil {
		return fmt.Errorf("failed to connect to DynamoDB table %s: %w", d.tableName, err)
	}
	return nil
}

// Close marks the store closed. The SDK client holds no connection to release.
func (d *DynamoDBKVStore) Close() error {
	d.closed.Store(true)
	return nil
}

// DynamoDBKVStoreFactory creates DynamoDB KV stores.
type DynamoDBKVStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *DynamoDBKVStoreFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *DynamoDBKVStoreFactory) Validate(config KVStoreConfig) error {
	if config.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", config.Type)
	}
	if config.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if config.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	return nil
}

// Create creates a new DynamoDB KV store instance.
func (f *DynamoDBKVStoreFactory) Create(config KVStoreConfig) (core.KVStore, error) {
	store, err := NewDynamoDBKVStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB KV store: %w", err)
	}
	return store, nil
}

// DynamoDBConfigValidator validates the dynamodb part of the process config.
type DynamoDBConfigValidator struct{}

// Type returns the type identifier for this validator.
func (v *DynamoDBConfigValidator) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration in the internal config.
func (v *DynamoDBConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	kvConfig := config.KVStore
	if kvConfig.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB validator: %s", kvConfig.Type)
	}
	if kvConfig.DynamoDBConfig.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if kvConfig.DynamoDBConfig.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	if kvConfig.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got: %d", kvConfig.MaxRetries)
	}
	return nil
}

func init() {
	RegisterFactory(&DynamoDBKVStoreFactory{})
	registry.RegisterValidator(&DynamoDBConfigValidator{})
}
