package schema

import (
	"strings"
	"time"
)

// ISODate is the canonical calendar date layout.
const ISODate = "2006-01-02"

// Layouts tried by NormalizeDate, in order. They mirror the SQL fallback
// chain in textDateExpr.
var (
	isoLayouts      = []string{"2006-1-2", "2006-1-2 15:04:05", "2006-1-2 15:04"}
	dayFirstLayouts = []string{"2/1/2006"}
)

// DateExpr produces the comparison, sort and render expressions for a date
// column of a given storage class.
type DateExpr struct {
	column string
	class  DateClass
}

// NewDateExpr creates a DateExpr for column stored as class.
func NewDateExpr(column string, class DateClass) DateExpr {
	return DateExpr{column: column, class: class}
}

// Available reports whether the column exists at all.
func (d DateExpr) Available() bool {
	return d.class != DateAbsent
}

// SortKey is the expression rows are compared and ordered by.
func (d DateExpr) SortKey() string {
	col := QuoteIdent(d.column)
	if d.class == DateText {
		return textDateExpr(col)
	}
	return col
}

// FromPredicate bounds the key from below, inclusive. It takes one argument
// in YYYY-MM-DD form.
func (d DateExpr) FromPredicate() string {
	return d.SortKey() + " >= ?"
}

// ToPredicate bounds the key from above, inclusive of the whole day. It takes
// one argument in YYYY-MM-DD form.
func (d DateExpr) ToPredicate() string {
	if d.class == DateNative {
		return d.SortKey() + " < DATE_ADD(?, INTERVAL 1 DAY)"
	}
	return d.SortKey() + " <= ?"
}

// Render selects the key as a YYYY-MM-DD string under alias. A missing
// column renders as NULL.
func (d DateExpr) Render(alias string) string {
	if d.class == DateAbsent {
		return "NULL AS " + QuoteIdent(alias)
	}
	return "DATE_FORMAT(" + d.SortKey() + ", '%Y-%m-%d') AS " + QuoteIdent(alias)
}

// textDateExpr is built by concatenation; the format strings contain %
// verbs that must reach MySQL untouched.
func textDateExpr(col string) string {
	return "COALESCE(" +
		"DATE(" + col + "), " +
		"STR_TO_DATE(SUBSTRING_INDEX(" + col + ", 'T', 1), '%Y-%m-%d'), " +
		"STR_TO_DATE(" + col + ", '%d/%m/%Y'), " +
		"STR_TO_DATE(" + col + ", '%Y-%m-%d'))"
}

// NormalizeDate parses the date forms found in text date columns: ISO dates
// with an optional time, ISO timestamps with a T separator, and day-first
// DD/MM/YYYY. The result is midnight UTC of that calendar date.
func NormalizeDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	if head, _, found := strings.Cut(s, "T"); found {
		if t, err := time.Parse("2006-1-2", head); err == nil {
			return truncateDay(t), true
		}
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	return time.Time{}, false
}

// CanonicalDate normalizes s and formats it as YYYY-MM-DD.
func CanonicalDate(s string) (string, bool) {
	t, ok := NormalizeDate(s)
	if !ok {
		return "", false
	}
	return t.Format(ISODate), true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ClassifyDateType maps a catalog data type to a DateClass. Size or
// precision suffixes such as datetime(3) are ignored.
func ClassifyDateType(dataType string) DateClass {
	base := strings.ToUpper(strings.TrimSpace(dataType))
	if idx := strings.Index(base, "("); idx > 0 {
		base = base[:idx]
	}

	switch base {
	case "DATE", "DATETIME", "TIMESTAMP":
		return DateNative
	default:
		return DateText
	}
}
