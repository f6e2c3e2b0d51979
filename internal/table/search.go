package table

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/schema"
)

// Paging bounds.
const (
	DefaultPageSize = 50
	MinPageSize     = 10
	MaxPageSize     = 200
)

// Sortable keys. Any other sortBy falls back to SortByDate.
const (
	SortByID   = "A/A"
	SortByDate = schema.DateColumn
	SortByTime = schema.TimeColumn
)

// SearchFilters are optional exact-match constraints. An empty value means
// no constraint.
type SearchFilters struct {
	From         string
	To           string
	TourOperator string
	Driver       string
	FromLocation string
	ToLocation   string
}

// SearchParams describes one page of a ride search. Zero Page and PageSize
// select the defaults.
type SearchParams struct {
	Filters  SearchFilters
	Page     int
	PageSize int
	SortBy   string
	SortDir  string
}

// SearchQuery is the pair of statements a search runs, plus the effective
// paging and sort that was applied.
type SearchQuery struct {
	Count    schema.Statement
	Rows     schema.Statement
	Page     int
	PageSize int
	SortBy   string
	SortDir  string
}

// ParsePage reads a page number the lenient way browsers send it: the
// leading integer is used, anything unparseable or zero means 1.
func ParsePage(raw string) int {
	n, _ := parseLeadingInt(raw)
	return clampPage(n)
}

// ParsePageSize reads a page size: the leading integer is used, anything
// unparseable or zero means DefaultPageSize, and the result is clamped into
// [MinPageSize, MaxPageSize].
func ParsePageSize(raw string) int {
	n, _ := parseLeadingInt(raw)
	return clampPageSize(n)
}

func clampPage(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func clampPageSize(n int) int {
	if n == 0 {
		n = DefaultPageSize
	}
	if n < MinPageSize {
		return MinPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// parseLeadingInt parses optional whitespace, an optional sign and a run of
// digits, ignoring whatever follows. "12abc" is 12; "abc" is not a number.
func parseLeadingInt(raw string) (int, bool) {
	s := strings.TrimLeft(raw, " \t\r\n")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	const limit = 1 << 30
	n, digits := 0, 0
	for ; digits < len(s) && s[digits] >= '0' && s[digits] <= '9'; digits++ {
		if n < limit {
			n = n*10 + int(s[digits]-'0')
		}
	}
	if digits == 0 {
		return 0, false
	}
	if n > limit {
		n = limit
	}
	if neg {
		n = -n
	}
	return n, true
}

// NormalizeSort returns the whitelisted sort key and "asc" or "desc".
func NormalizeSort(sortBy, sortDir string) (string, string) {
	switch sortBy {
	case SortByID, SortByDate, SortByTime:
	default:
		sortBy = SortByDate
	}
	if strings.EqualFold(strings.TrimSpace(sortDir), "asc") {
		return sortBy, "asc"
	}
	return sortBy, "desc"
}

// BuildSearch renders the count and page statements for params against the
// rides profile. Filters on columns the table lacks are rejected; a sort on
// a missing date or time column degrades to the next available key.
func BuildSearch(profile *schema.Profile, params SearchParams) (*SearchQuery, error) {
	date := schema.NewDateExpr(schema.DateColumn, profile.DateClass)
	hasTime := profile.Has(schema.TimeColumn)
	idCol := schema.QuoteIdent(profile.IDColumn)

	where, args, err := buildWhere(profile, date, params.Filters)
	if err != nil {
		return nil, err
	}

	sortBy, sortDir := NormalizeSort(params.SortBy, params.SortDir)
	if sortBy == SortByTime && !hasTime {
		sortBy = SortByDate
	}
	if sortBy == SortByDate && !date.Available() {
		sortBy = SortByID
	}

	dir := strings.ToUpper(sortDir)
	var order []string
	switch sortBy {
	case SortByDate:
		order = append(order, date.SortKey()+" "+dir)
		if hasTime {
			order = append(order, schema.QuoteIdent(schema.TimeColumn)+" DESC")
		}
		order = append(order, idCol+" DESC")
	case SortByTime:
		order = append(order, schema.QuoteIdent(schema.TimeColumn)+" "+dir)
		if date.Available() {
			order = append(order, date.SortKey()+" DESC")
		}
		order = append(order, idCol+" DESC")
	default:
		order = append(order, idCol+" "+dir)
		if date.Available() {
			order = append(order, date.SortKey()+" DESC")
		}
		if hasTime {
			order = append(order, schema.QuoteIdent(schema.TimeColumn)+" DESC")
		}
	}

	page := clampPage(params.Page)
	pageSize := clampPageSize(params.PageSize)
	offset := int64(page-1) * int64(pageSize)

	table := schema.QuoteIdent(profile.Table)
	countSQL := "SELECT COUNT(*) FROM " + table + where
	rowsSQL := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY %s LIMIT ? OFFSET ?",
		strings.Join(selectList(profile, date), ", "),
		table,
		where,
		strings.Join(order, ", "),
	)

	rowArgs := make([]interface{}, 0, len(args)+2)
	rowArgs = append(rowArgs, args...)
	rowArgs = append(rowArgs, pageSize, offset)

	return &SearchQuery{
		Count:    schema.Statement{SQL: countSQL, Args: args},
		Rows:     schema.Statement{SQL: rowsSQL, Args: rowArgs},
		Page:     page,
		PageSize: pageSize,
		SortBy:   sortBy,
		SortDir:  sortDir,
	}, nil
}

func buildWhere(profile *schema.Profile, date schema.DateExpr, f SearchFilters) (string, []interface{}, error) {
	var preds []string
	var args []interface{}

	bounds := []struct {
		param string
		value string
		pred  func() string
	}{
		{"from", f.From, date.FromPredicate},
		{"to", f.To, date.ToPredicate},
	}
	for _, b := range bounds {
		if strings.TrimSpace(b.value) == "" {
			continue
		}
		if !date.Available() {
			return "", nil, core.NewValidationError(fmt.Sprintf("Filter %q is not supported by this table", b.param))
		}
		day, ok := schema.CanonicalDate(b.value)
		if !ok {
			return "", nil, core.NewValidationError(fmt.Sprintf("Invalid %q date, expected YYYY-MM-DD", b.param))
		}
		preds = append(preds, b.pred())
		args = append(args, day)
	}

	exact := []struct {
		param  string
		column string
		value  string
	}{
		{"tour_oper", "TOUR_OPER", f.TourOperator},
		{"driver", "DRIVER", f.Driver},
		{"from_location", "FROM", f.FromLocation},
		{"to_location", "TO", f.ToLocation},
	}
	for _, e := range exact {
		if e.value == "" {
			continue
		}
		if !profile.Has(e.column) {
			return "", nil, core.NewValidationError(fmt.Sprintf("Filter %q is not supported by this table", e.param))
		}
		preds = append(preds, schema.QuoteIdent(e.column)+" = ?")
		args = append(args, e.value)
	}

	if len(preds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(preds, " AND "), args, nil
}

// selectList renders the id alias followed by every ride field. Columns the
// table lacks are selected as NULL so every row has the same keys.
func selectList(profile *schema.Profile, date schema.DateExpr) []string {
	cols := make([]string, 0, len(schema.RideFields)+1)
	cols = append(cols, schema.QuoteIdent(profile.IDColumn)+" AS "+schema.QuoteIdent(SortByID))
	for _, f := range schema.RideFields {
		switch {
		case f.Name == schema.DateColumn:
			cols = append(cols, date.Render(f.Name))
		case profile.Has(f.Name):
			cols = append(cols, schema.QuoteIdent(f.Name))
		default:
			cols = append(cols, "NULL AS "+schema.QuoteIdent(f.Name))
		}
	}
	return cols
}
