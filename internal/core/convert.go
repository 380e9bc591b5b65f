package core

// convert.go coerces untyped source cells into pgtype nullable values.
//
// Source drivers hand back whatever the column type dictates (text, int64,
// float64, pgtype.Numeric, time.Time, nil) and the raw tables mix them freely:
// an id column may hold "12", 12, "12.0" or "n/a" depending on how the row got
// there. These functions handle that reality:
//   - Numeric text is accepted only in plain decimal/scientific notation
//   - Fractional values headed for integer columns are truncated toward zero
//   - Multiple date formats (ISO, US, timestamps, 2-digit years)
//   - Already-coerced pgtype values pass through unchanged
//
// All To* functions return a value with Valid=false for null or unparseable
// input. None of them return an error or panic.

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after trimming.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02",
		time.RFC3339Nano, time.RFC3339,
		"2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
		"20060102",
	}
)

// IsNull reports whether v is a recognized null marker: nil, a NaN float, or
// an invalid pgtype value.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case pgtype.Int8:
		return !x.Valid
	case pgtype.Int4:
		return !x.Valid
	case pgtype.Int2:
		return !x.Valid
	case pgtype.Float8:
		return !x.Valid || math.IsNaN(x.Float64)
	case pgtype.Float4:
		return !x.Valid
	case pgtype.Numeric:
		return !x.Valid || x.NaN
	case pgtype.Text:
		return !x.Valid
	case pgtype.Date:
		return !x.Valid
	case pgtype.Timestamp:
		return !x.Valid
	case pgtype.Timestamptz:
		return !x.Valid
	case pgtype.UUID:
		return !x.Valid
	case *string:
		return x == nil
	}
	return false
}

// isBlank reports whether v is null or text containing only whitespace.
func isBlank(v any) bool {
	if IsNull(v) {
		return true
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) == ""
	case []byte:
		return strings.TrimSpace(string(x)) == ""
	case pgtype.Text:
		return strings.TrimSpace(x.String) == ""
	}
	return false
}

// ToNullInt converts a cell to pgtype.Int8.
// Integer types are taken as-is; text and floats go through the numeric parse
// and are truncated toward zero. NaN, infinities and values outside the int64
// range are invalid.
func ToNullInt(v any) pgtype.Int8 {
	switch x := v.(type) {
	case pgtype.Int8:
		return x
	case pgtype.Int4:
		return pgtype.Int8{Int64: int64(x.Int32), Valid: x.Valid}
	case pgtype.Int2:
		return pgtype.Int8{Int64: int64(x.Int16), Valid: x.Valid}
	case int64:
		return pgtype.Int8{Int64: x, Valid: true}
	case int:
		return pgtype.Int8{Int64: int64(x), Valid: true}
	case int32:
		return pgtype.Int8{Int64: int64(x), Valid: true}
	case int16:
		return pgtype.Int8{Int64: int64(x), Valid: true}
	case int8:
		return pgtype.Int8{Int64: int64(x), Valid: true}
	case uint32:
		return pgtype.Int8{Int64: int64(x), Valid: true}
	case uint16:
		return pgtype.Int8{Int64: int64(x), Valid: true}
	case uint8:
		return pgtype.Int8{Int64: int64(x), Valid: true}
	case uint64:
		if x > math.MaxInt64 {
			return pgtype.Int8{Valid: false}
		}
		return pgtype.Int8{Int64: int64(x), Valid: true}
	case uint:
		if uint64(x) > math.MaxInt64 {
			return pgtype.Int8{Valid: false}
		}
		return pgtype.Int8{Int64: int64(x), Valid: true}
	case string:
		// Exact path first so large ids do not lose precision through float64.
		if i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return pgtype.Int8{Int64: i, Valid: true}
		}
	}

	f, ok := toFloat(v)
	if !ok || math.IsInf(f, 0) {
		return pgtype.Int8{Valid: false}
	}

	f = math.Trunc(f)
	// float64(math.MaxInt64) rounds up to 2^63, which is itself out of range.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: int64(f), Valid: true}
}

// ToNullFloat converts a cell to pgtype.Float8.
// NaN is invalid; infinities are kept since PostgreSQL stores them.
func ToNullFloat(v any) pgtype.Float8 {
	if f8, ok := v.(pgtype.Float8); ok {
		if f8.Valid && math.IsNaN(f8.Float64) {
			return pgtype.Float8{Valid: false}
		}
		return f8
	}

	f, ok := toFloat(v)
	if !ok {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// toFloat extracts a float64 from any numeric-looking cell.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint:
		return float64(x), true
	case string:
		return parseNumeric(x)
	case []byte:
		return parseNumeric(string(x))
	case json.Number:
		return parseNumeric(string(x))
	case pgtype.Text:
		if !x.Valid {
			return 0, false
		}
		return parseNumeric(x.String)
	case pgtype.Int8:
		return float64(x.Int64), x.Valid
	case pgtype.Int4:
		return float64(x.Int32), x.Valid
	case pgtype.Int2:
		return float64(x.Int16), x.Valid
	case pgtype.Float8:
		return x.Float64, x.Valid && !math.IsNaN(x.Float64)
	case pgtype.Float4:
		return float64(x.Float32), x.Valid && !math.IsNaN(float64(x.Float32))
	case pgtype.Numeric:
		if !x.Valid || x.NaN {
			return 0, false
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return 0, false
		}
		return f.Float64, true
	}
	return 0, false
}

// parseNumeric parses plain decimal or scientific notation.
// Hex, underscores, "inf" and "nan" spellings are rejected.
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Overflow: ParseFloat returns ±Inf with ErrRange.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange && math.IsInf(f, 0) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// ToNullDate converts a cell to pgtype.Date.
// Supports multiple text formats and handles 2-digit years with pivot.
// Timestamps are reduced to their calendar date.
func ToNullDate(v any) pgtype.Date {
	switch x := v.(type) {
	case pgtype.Date:
		return x
	case time.Time:
		return dateOf(x)
	case pgtype.Timestamp:
		if !x.Valid {
			return pgtype.Date{Valid: false}
		}
		return dateOf(x.Time)
	case pgtype.Timestamptz:
		if !x.Valid {
			return pgtype.Date{Valid: false}
		}
		return dateOf(x.Time)
	case string:
		return parseDate(x)
	case []byte:
		return parseDate(string(x))
	case pgtype.Text:
		if !x.Valid {
			return pgtype.Date{Valid: false}
		}
		return parseDate(x.String)
	}
	return pgtype.Date{Valid: false}
}

func dateOf(t time.Time) pgtype.Date {
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func parseDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return dateOf(t)
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot

	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return dateOf(t)
		}
	}

	return pgtype.Date{Valid: false}
}

// ToNullText converts a flattened JSON value to pgtype.Text.
// Blank strings are invalid. Numbers and booleans are formatted; arrays and
// objects are re-encoded as JSON.
func ToNullText(v any) pgtype.Text {
	if IsNull(v) {
		return pgtype.Text{Valid: false}
	}

	switch x := v.(type) {
	case pgtype.Text:
		return x
	case string:
		if strings.TrimSpace(x) == "" {
			return pgtype.Text{Valid: false}
		}
		return pgtype.Text{String: x, Valid: true}
	case float64:
		return pgtype.Text{String: strconv.FormatFloat(x, 'f', -1, 64), Valid: true}
	case bool:
		return pgtype.Text{String: strconv.FormatBool(x), Valid: true}
	case json.Number:
		return pgtype.Text{String: x.String(), Valid: true}
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return pgtype.Text{Valid: false}
		}
		return pgtype.Text{String: string(b), Valid: true}
	}
	return pgtype.Text{String: fmt.Sprint(v), Valid: true}
}

// Plain unwraps pgtype values into plain Go values (int64, float64, string,
// time.Time). Absent values become nil; anything else is returned unchanged.
func Plain(v any) any {
	if IsNull(v) {
		return nil
	}
	if vr, ok := v.(driver.Valuer); ok {
		pv, err := vr.Value()
		if err != nil {
			return nil
		}
		return pv
	}
	return v
}
