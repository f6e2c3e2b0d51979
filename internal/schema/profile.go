package schema

import (
	"strings"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

// Logical tables and the well-known business columns.
const (
	RidesTable  = "data"
	PricesTable = "prices"

	DateColumn = "THE_DATE"
	TimeColumn = "TIME"
)

// IDColumnCandidates lists the names the record id column goes by across
// deployments, most preferred first.
var IDColumnCandidates = []string{"A/A", "Αναγνωριστικό"}

// DateClass describes how the date column is stored.
type DateClass string

const (
	// DateNative is a DATE, DATETIME or TIMESTAMP column.
	DateNative DateClass = "native"

	// DateText is any other column type holding date-like text.
	DateText DateClass = "text"

	// DateAbsent means the table has no date column.
	DateAbsent DateClass = ""
)

// Profile is the resolved shape of one logical table. It is built once from
// the catalog and never mutated afterwards, so it can be shared freely.
type Profile struct {
	// Table is the logical table name.
	Table string

	// IDColumn is the physical id column.
	IDColumn string

	// IDFallback is true when no candidate id column exists and IDColumn
	// holds the first candidate anyway.
	IDFallback bool

	// DateClass is the storage class of THE_DATE.
	DateClass DateClass

	columns map[string]struct{}
	ordered []string
}

// NewProfile derives a Profile from a catalog schema.
func NewProfile(s *core.Schema) *Profile {
	p := &Profile{
		Table:   s.TableName,
		columns: make(map[string]struct{}, len(s.Columns)),
		ordered: make([]string, 0, len(s.Columns)),
	}
	for _, col := range s.Columns {
		if _, dup := p.columns[col.Name]; dup {
			continue
		}
		p.columns[col.Name] = struct{}{}
		p.ordered = append(p.ordered, col.Name)
	}

	p.IDColumn, p.IDFallback = resolveIDColumn(p.columns)
	if col, ok := s.Column(DateColumn); ok {
		p.DateClass = ClassifyDateType(col.Type)
	}
	return p
}

func resolveIDColumn(columns map[string]struct{}) (string, bool) {
	for _, name := range IDColumnCandidates {
		if _, ok := columns[name]; ok {
			return name, false
		}
	}
	return IDColumnCandidates[0], true
}

// Has reports whether the table has the named column.
func (p *Profile) Has(column string) bool {
	_, ok := p.columns[column]
	return ok
}

// ColumnNames returns the column names in ordinal order.
func (p *Profile) ColumnNames() []string {
	out := make([]string, len(p.ordered))
	copy(out, p.ordered)
	return out
}

// ColumnSet returns a copy of the column set.
func (p *Profile) ColumnSet() map[string]struct{} {
	out := make(map[string]struct{}, len(p.columns))
	for name := range p.columns {
		out[name] = struct{}{}
	}
	return out
}

// QuoteIdent quotes a MySQL identifier. Column names here contain spaces,
// slashes and non-ASCII letters.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
