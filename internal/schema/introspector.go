package schema

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

// SchemaReader reads a table layout from the store catalog.
type SchemaReader interface {
	GetSchema(ctx context.Context, schemaName, tableName string) (*core.Schema, error)
}

// Introspector resolves table profiles from the catalog. It keeps no state
// between calls; callers hold on to the profiles they build.
type Introspector struct {
	reader     SchemaReader
	schemaName string
	logger     zerolog.Logger
}

// NewIntrospector creates an introspector. An empty schemaName means the
// connection's default database.
func NewIntrospector(reader SchemaReader, schemaName string) *Introspector {
	return &Introspector{
		reader:     reader,
		schemaName: schemaName,
		logger:     log.With().Str("component", "schema").Logger(),
	}
}

// Profile reads the catalog once and derives the id column, the column set
// and the date class of table.
func (i *Introspector) Profile(ctx context.Context, table string) (*Profile, error) {
	s, err := i.reader.GetSchema(ctx, i.schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect table %s: %w", table, err)
	}

	p := NewProfile(s)
	ev := i.logger.Info()
	if len(s.Columns) == 0 {
		ev = i.logger.Warn()
	}
	ev.Str("table", table).
		Int("columns", len(s.Columns)).
		Str("id_column", p.IDColumn).
		Str("date_class", string(p.DateClass)).
		Msg("table profile resolved")

	if p.IDFallback {
		i.logger.Warn().
			Str("table", table).
			Strs("candidates", IDColumnCandidates).
			Msg("no id column candidate exists, falling back to the first candidate")
	}
	return p, nil
}

// ResolveIDColumn returns the id column of table.
func (i *Introspector) ResolveIDColumn(ctx context.Context, table string) (string, error) {
	p, err := i.Profile(ctx, table)
	if err != nil {
		return "", err
	}
	return p.IDColumn, nil
}

// ResolveColumnSet returns the set of columns of table.
func (i *Introspector) ResolveColumnSet(ctx context.Context, table string) (map[string]struct{}, error) {
	p, err := i.Profile(ctx, table)
	if err != nil {
		return nil, err
	}
	return p.ColumnSet(), nil
}

// ResolveDateColumnType returns the storage class of the date column of table.
func (i *Introspector) ResolveDateColumnType(ctx context.Context, table string) (DateClass, error) {
	p, err := i.Profile(ctx, table)
	if err != nil {
		return DateAbsent, err
	}
	return p.DateClass, nil
}
