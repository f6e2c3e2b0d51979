package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/database"
	"github.com/rzpsarthak13/transferdesk/internal/kvstore"
	"github.com/rzpsarthak13/transferdesk/internal/read"
	"github.com/rzpsarthak13/transferdesk/internal/registry"
	"github.com/rzpsarthak13/transferdesk/internal/schema"
	"github.com/rzpsarthak13/transferdesk/internal/table"
	"github.com/rzpsarthak13/transferdesk/internal/writeback"
)

// Options tweaks how the client connects.
type Options struct {
	// Dev replaces the configured KV store with an in-process Redis.
	Dev bool
}

// Components are the already opened backends a client is assembled from.
type Components struct {
	Database core.Database
	KVStore  core.KVStore // may be nil to disable caching
	Queue    core.ChangeQueue
}

// Client owns every backend connection and the tables built on them.
type Client struct {
	mu       sync.Mutex
	config   *registry.InternalConfig
	database core.Database
	kvStore  core.KVStore
	queue    core.ChangeQueue
	tables   *registry.TableRegistry
	rides    *table.RideTable
	prices   *table.PriceTable
	drainer  *writeback.Drainer
	devRedis *miniredis.Miniredis
	started  bool
	closed   bool
	logger   zerolog.Logger
}

// New opens the store, the KV store and the change queue described by
// config, then profiles the logical tables.
func New(ctx context.Context, config *registry.InternalConfig, opts Options) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	var devRedis *miniredis.Miniredis
	if opts.Dev {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start dev redis: %w", err)
		}
		devRedis = mr
		config.KVStore.Type = "redis"
		config.KVStore.RedisConfig.Endpoints = []string{mr.Addr()}
		config.KVStore.RedisConfig.Password = ""
		log.Info().Str("addr", mr.Addr()).Msg("using in-process redis")
	}

	var comps Components
	cleanup := func() {
		if comps.Queue != nil {
			comps.Queue.Close()
		}
		if comps.KVStore != nil {
			comps.KVStore.Close()
		}
		if comps.Database != nil {
			comps.Database.Close()
		}
		if devRedis != nil {
			devRedis.Close()
		}
	}

	db, err := database.NewMySQLDatabase(database.MySQLConfig{
		Host:              config.Database.Host,
		Port:              config.Database.Port,
		Database:          config.Database.Database,
		Username:          config.Database.Username,
		Password:          config.Database.Password,
		MaxOpenConns:      config.Database.MaxOpenConns,
		MaxIdleConns:      config.Database.MaxIdleConns,
		ConnMaxLifetime:   config.Database.ConnMaxLifetime,
		ConnMaxIdleTime:   config.Database.ConnMaxIdleTime,
		ConnectionTimeout: config.Database.ConnectionTimeout,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	comps.Database = db

	kv, err := kvstore.Create(kvstore.ConfigFromRegistry(config.KVStore))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create KV store: %w", err)
	}
	comps.KVStore = kv

	lists, _ := kv.(writeback.ListOperations)
	queue, err := writeback.NewQueue(config.WriteBack, lists)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create change queue: %w", err)
	}
	comps.Queue = queue

	c, err := Assemble(ctx, config, comps)
	if err != nil {
		cleanup()
		return nil, err
	}
	c.devRedis = devRedis
	return c, nil
}

// Assemble builds a client over opened components. The logical tables are
// profiled once here; a catalog failure aborts startup.
func Assemble(ctx context.Context, config *registry.InternalConfig, comps Components) (*Client, error) {
	if comps.Database == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if comps.Queue == nil {
		comps.Queue = writeback.NewMemoryQueue(config.WriteBack.QueueBufferSize)
	}

	reader, ok := comps.Database.(schema.SchemaReader)
	if !ok {
		return nil, fmt.Errorf("database %T cannot read table schemas", comps.Database)
	}
	introspector := schema.NewIntrospector(reader, config.Database.SchemaName)
	lifecycle := registry.NewLifecycleManager()
	tables := registry.NewTableRegistry(introspector, lifecycle)
	for _, name := range []string{schema.RidesTable, schema.PricesTable} {
		if err := tables.Register(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to profile table %q: %w", name, err)
		}
	}

	cache := read.NewCacheHandler(comps.KVStore, config.KVStore.Namespace, config.KVStore.CacheTTL)
	rides := table.NewRideTable(comps.Database, tables, cache, comps.Queue, table.RideTableConfig{
		SnapshotReads: config.Rides.SnapshotReads,
	})
	prices := table.NewPriceTable(comps.Database, tables, cache)

	// A reloaded rides profile may add or drop the driver column.
	lifecycle.RegisterHook(registry.LifecycleHookFunc(func(ctx context.Context, name string, _, _ *schema.Profile) error {
		if name != schema.RidesTable {
			return nil
		}
		return rides.InvalidateOptions(ctx)
	}))

	drainer := writeback.NewDrainer(comps.Queue, table.NewChangeInvalidator(rides), writeback.DrainerConfig{
		BatchSize:    config.WriteBack.BatchSize,
		DrainRate:    config.WriteBack.DrainRate,
		PollInterval: config.WriteBack.PollInterval,
	})

	return &Client{
		config:   config,
		database: comps.Database,
		kvStore:  comps.KVStore,
		queue:    comps.Queue,
		tables:   tables,
		rides:    rides,
		prices:   prices,
		drainer:  drainer,
		logger:   log.With().Str("component", "client").Logger(),
	}, nil
}

// Rides returns the rides table.
func (c *Client) Rides() *table.RideTable { return c.rides }

// Prices returns the prices table.
func (c *Client) Prices() *table.PriceTable { return c.prices }

// Tables returns the profile registry.
func (c *Client) Tables() *registry.TableRegistry { return c.tables }

// Config returns the configuration the client was built with.
func (c *Client) Config() *registry.InternalConfig { return c.config }

// Ready pings the store and the KV store.
func (c *Client) Ready(ctx context.Context) error {
	if err := c.database.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.kvStore != nil {
		if err := c.kvStore.Ping(ctx); err != nil {
			return fmt.Errorf("kv store: %w", err)
		}
	}
	return nil
}

// Start launches the change drainer.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if c.started {
		return nil
	}
	c.drainer.Start(ctx)
	c.started = true
	return nil
}

// Close stops the drainer and closes every connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.started {
		c.drainer.Stop()
	}

	var errs []error
	if err := c.queue.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close change queue: %w", err))
	}
	if c.kvStore != nil {
		if err := c.kvStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close KV store: %w", err))
		}
	}
	if err := c.database.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if c.devRedis != nil {
		c.devRedis.Close()
	}

	if err := errors.Join(errs...); err != nil {
		c.logger.Error().Err(err).Msg("close")
		return err
	}
	return nil
}
