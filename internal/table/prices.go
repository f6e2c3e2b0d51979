package table

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/read"
	"github.com/rzpsarthak13/transferdesk/internal/schema"
)

// Price is one entry of the price list.
type Price struct {
	ID          string   `json:"id"`
	Destination *string  `json:"destination"`
	Tour        *string  `json:"tour"`
	Price       *float64 `json:"price"`
}

// PriceQuote is the answer to a price lookup.
type PriceQuote struct {
	Price *float64 `json:"price"`
}

// PriceTable reads the prices logical table. Prices are maintained outside
// this service, so lookups are cached for the configured TTL.
type PriceTable struct {
	db       core.Database
	profiles ProfileSource
	cache    *read.CacheHandler
	logger   zerolog.Logger
}

// NewPriceTable creates a price table. cache may be nil.
func NewPriceTable(db core.Database, profiles ProfileSource, cache *read.CacheHandler) *PriceTable {
	if cache == nil {
		cache = read.NewCacheHandler(nil, "", 0)
	}
	return &PriceTable{
		db:       db,
		profiles: profiles,
		cache:    cache,
		logger:   log.With().Str("component", "prices").Logger(),
	}
}

// List returns every price ordered by destination and tour.
func (t *PriceTable) List(ctx context.Context) ([]*Price, error) {
	profile, err := t.profiles.Profile(schema.PricesTable)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s AS id, `Destination` AS destination, `Tour` AS tour, `Price` AS price FROM %s ORDER BY `Destination`, `Tour`",
		schema.QuoteIdent(profile.IDColumn), schema.QuoteIdent(profile.Table),
	)
	rows, err := t.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make([]*Price, 0)
	for rows.Next() {
		var id, destination, tour, price sql.NullString
		if err := rows.Scan(&id, &destination, &tour, &price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, &Price{
			ID:          id.String,
			Destination: textPtr(destination),
			Tour:        textPtr(tour),
			Price:       numberPtr(price),
		})
	}
	return prices, rows.Err()
}

// Lookup returns the price for an exact (destination, tour) pair.
func (t *PriceTable) Lookup(ctx context.Context, destination, tour string) (*PriceQuote, error) {
	if destination == "" || tour == "" {
		return nil, core.NewValidationError("Missing destination/tour")
	}

	var quote PriceQuote
	key := priceKey(destination, tour)
	err := t.cache.GetOrLoad(ctx, schema.PricesTable, key, &quote, func(ctx context.Context) (interface{}, error) {
		return t.loadQuote(ctx, destination, tour)
	})
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// priceKey encodes the pair so that no two pairs share a cache key, even
// when a value contains the separator.
func priceKey(destination, tour string) string {
	return strconv.Quote(destination) + ":" + strconv.Quote(tour)
}

func (t *PriceTable) loadQuote(ctx context.Context, destination, tour string) (*PriceQuote, error) {
	rows, err := t.db.Query(ctx,
		"SELECT `Price` AS price FROM `prices` WHERE `Destination` = ? AND `Tour` = ? LIMIT 1",
		destination, tour,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		t.logger.Debug().Str("destination", destination).Str("tour", tour).Msg("no price")
		return nil, fmt.Errorf("price for %s/%s: %w", destination, tour, core.ErrNotFound)
	}
	var price sql.NullString
	if err := rows.Scan(&price); err != nil {
		return nil, fmt.Errorf("failed to scan price: %w", err)
	}
	return &PriceQuote{Price: numberPtr(price)}, nil
}
