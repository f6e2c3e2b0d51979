package table

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/read"
	"github.com/rzpsarthak13/transferdesk/internal/schema"
)

// ProfileSource hands out the current profile of a logical table.
// registry.TableRegistry implements it.
type ProfileSource interface {
	Profile(tableName string) (*schema.Profile, error)
}

// optionsKey is the cache key of the driver option list.
const optionsKey = "options"

// SearchResult is one page of rides.
type SearchResult struct {
	Rows     []*Ride `json:"rows"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
	SortBy   string  `json:"sortBy"`
	SortDir  string  `json:"sortDir"`
}

// RideOptions lists the values offered by the search form.
type RideOptions struct {
	Drivers []string `json:"drivers"`
}

// RideTableConfig controls optional ride table behaviour.
type RideTableConfig struct {
	// SnapshotReads runs the count and the page query of a search inside one
	// read-only REPEATABLE READ transaction. Without it the two reads are
	// independent and total may disagree with the page under concurrent
	// writes.
	SnapshotReads bool
}

// RideTable reads and writes the rides logical table.
type RideTable struct {
	db       core.Database
	profiles ProfileSource
	cache    *read.CacheHandler
	changes  core.ChangeQueue
	config   RideTableConfig
	logger   zerolog.Logger
}

// NewRideTable creates a ride table. cache and changes may be nil.
func NewRideTable(db core.Database, profiles ProfileSource, cache *read.CacheHandler, changes core.ChangeQueue, config RideTableConfig) *RideTable {
	if cache == nil {
		cache = read.NewCacheHandler(nil, "", 0)
	}
	return &RideTable{
		db:       db,
		profiles: profiles,
		cache:    cache,
		changes:  changes,
		config:   config,
		logger:   log.With().Str("component", "rides").Logger(),
	}
}

func (t *RideTable) profile() (*schema.Profile, error) {
	return t.profiles.Profile(schema.RidesTable)
}

// Search returns one page of rides matching params together with the total
// number of matches.
func (t *RideTable) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	profile, err := t.profile()
	if err != nil {
		return nil, err
	}
	q, err := BuildSearch(profile, params)
	if err != nil {
		return nil, err
	}

	var querier core.Querier = t.db
	var tx core.Transaction
	if t.config.SnapshotReads {
		tx, err = t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()
		querier = tx
	}

	total, err := countRows(ctx, querier, q.Count)
	if err != nil {
		return nil, err
	}

	rows, err := querier.Query(ctx, q.Rows.SQL, q.Rows.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &SearchResult{
		Rows:     make([]*Ride, 0, q.PageSize),
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
		SortBy:   q.SortBy,
		SortDir:  q.SortDir,
	}
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ride: %w", err)
		}
		result.Rows = append(result.Rows, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to finish snapshot read: %w", err)
		}
	}

	t.logger.Debug().
		Int64("total", total).
		Int("page", q.Page).
		Int("rows", len(result.Rows)).
		Msg("search")
	return result, nil
}

func countRows(ctx context.Context, q core.Querier, stmt schema.Statement) (int64, error) {
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var total int64
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}
	return total, rows.Err()
}

// Options returns the distinct non-blank driver names, served from the
// cache when possible.
func (t *RideTable) Options(ctx context.Context) (*RideOptions, error) {
	var opts RideOptions
	err := t.cache.GetOrLoad(ctx, schema.RidesTable, optionsKey, &opts, func(ctx context.Context) (interface{}, error) {
		return t.loadOptions(ctx)
	})
	if err != nil {
		return nil, err
	}
	if opts.Drivers == nil {
		opts.Drivers = []string{}
	}
	return &opts, nil
}

func (t *RideTable) loadOptions(ctx context.Context) (*RideOptions, error) {
	profile, err := t.profile()
	if err != nil {
		return nil, err
	}
	opts := &RideOptions{Drivers: []string{}}
	if !profile.Has("DRIVER") {
		return opts, nil
	}

	driver := schema.QuoteIdent("DRIVER")
	query := fmt.Sprintf(
		"SELECT DISTINCT TRIM(%s) AS driver FROM %s WHERE %s IS NOT NULL AND TRIM(%s) <> '' ORDER BY driver",
		driver, schema.QuoteIdent(profile.Table), driver, driver,
	)
	rows, err := t.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan driver: %w", err)
		}
		opts.Drivers = append(opts.Drivers, name)
	}
	return opts, rows.Err()
}

// InvalidateOptions drops the cached driver option list.
func (t *RideTable) InvalidateOptions(ctx context.Context) error {
	return t.cache.Invalidate(ctx, schema.RidesTable, optionsKey)
}

// Insert creates a ride and returns the id assigned by the store.
func (t *RideTable) Insert(ctx context.Context, input map[string]interface{}) (int64, error) {
	profile, err := t.profile()
	if err != nil {
		return 0, err
	}
	stmt, err := schema.NewUpsertMapper(profile).Insert(input)
	if err != nil {
		return 0, err
	}

	result, err := t.db.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}

	t.publish(ctx, core.OperationCreate, strconv.FormatInt(id, 10), stmt.Fields)
	return id, nil
}

// Update changes the fields present in input on the ride with the given id.
func (t *RideTable) Update(ctx context.Context, id string, input map[string]interface{}) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.NewValidationError("Missing ride id")
	}
	profile, err := t.profile()
	if err != nil {
		return err
	}
	stmt, err := schema.NewUpsertMapper(profile).Update(id, input)
	if err != nil {
		return err
	}

	if err := t.execOne(ctx, stmt, id); err != nil {
		return err
	}
	t.publish(ctx, core.OperationUpdate, id, stmt.Fields)
	return nil
}

// Delete removes the ride with the given id.
func (t *RideTable) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.NewValidationError("Missing ride id")
	}
	profile, err := t.profile()
	if err != nil {
		return err
	}

	if err := t.execOne(ctx, schema.NewUpsertMapper(profile).Delete(id), id); err != nil {
		return err
	}
	t.publish(ctx, core.OperationDelete, id, nil)
	return nil
}

// execOne runs a single-row statement and reports core.ErrNotFound when it
// matched nothing.
func (t *RideTable) execOne(ctx context.Context, stmt schema.Statement, id string) error {
	result, err := t.db.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("ride %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// publish records a committed write on the change queue. The write already
// happened, so a queue failure does not fail the write. When the change
// cannot be queued its cache invalidation is applied in place, since no
// drainer will ever see it.
func (t *RideTable) publish(ctx context.Context, op core.OperationType, key string, fields []string) {
	change := &core.RideChange{
		ID:        uuid.NewString(),
		Table:     schema.RidesTable,
		Operation: op,
		Key:       key,
		Fields:    fields,
		Timestamp: time.Now(),
	}
	if t.changes != nil {
		err := t.changes.Enqueue(ctx, change)
		if err == nil {
			return
		}
		t.logger.Warn().Err(err).
			Str("operation", string(op)).
			Str("key", key).
			Msg("failed to publish ride change, invalidating in place")
	}
	if err := NewChangeInvalidator(t).HandleChange(ctx, change); err != nil {
		t.logger.Warn().Err(err).Str("key", key).Msg("failed to invalidate ride options")
	}
}
