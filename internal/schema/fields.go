package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValueKind selects how a client value is cast before it is written.
type ValueKind int

const (
	// NullableString trims the value; blank becomes NULL.
	NullableString ValueKind = iota

	// NullableNumber trims the value, reads the first comma as a decimal
	// point and parses it; anything not finite becomes NULL.
	NullableNumber
)

func (k ValueKind) String() string {
	switch k {
	case NullableString:
		return "nullable_string"
	case NullableNumber:
		return "nullable_number"
	default:
		return "unknown"
	}
}

// Field is a writable business field. Name is both the JSON key clients send
// and the physical column name.
type Field struct {
	Name string
	Kind ValueKind
}

// RideFields lists the writable ride fields in column order. The id is never
// written by clients.
var RideFields = []Field{
	{Name: DateColumn, Kind: NullableString},
	{Name: TimeColumn, Kind: NullableString},
	{Name: "TYPE", Kind: NullableString},
	{Name: "FROM", Kind: NullableString},
	{Name: "TO", Kind: NullableString},
	{Name: "HOTEL NAME", Kind: NullableString},
	{Name: "AREA", Kind: NullableString},
	{Name: "FLY_CODE", Kind: NullableString},
	{Name: "FLY_COMPANY", Kind: NullableString},
	{Name: "THE_NAME", Kind: NullableString},
	{Name: "EMAIL", Kind: NullableString},
	{Name: "PAX", Kind: NullableNumber},
	{Name: "ADULT", Kind: NullableNumber},
	{Name: "CH/INF", Kind: NullableString},
	{Name: "INFO", Kind: NullableString},
	{Name: "VCode", Kind: NullableString},
	{Name: "TOUR_OPER", Kind: NullableString},
	{Name: "PRICE", Kind: NullableNumber},
	{Name: "DRIVER_PRICE", Kind: NullableNumber},
	{Name: "DRIVER", Kind: NullableString},
}

// Coerce casts v according to the field kind. The result is nil, a string
// or a float64.
func (f Field) Coerce(v interface{}) interface{} {
	switch f.Kind {
	case NullableNumber:
		return ToNullableNumber(v)
	default:
		return ToNullableString(v)
	}
}

// ToNullableString renders v as trimmed text, or nil when it is absent or
// blank.
func ToNullableString(v interface{}) interface{} {
	s, ok := textOf(v)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// ToNullableNumber parses v as a number, or returns nil when it is absent,
// blank or not a finite number. Only the first comma is read as a decimal
// point, so "1,234,5" is rejected.
func ToNullableNumber(v interface{}) interface{} {
	switch n := v.(type) {
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}

	s, ok := textOf(v)
	if !ok {
		return nil
	}
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return finite(n)
}

func finite(n float64) interface{} {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return n
}

func textOf(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case []byte:
		return string(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
