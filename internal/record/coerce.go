package record

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateOnlyLayout is the layout produced by HTML date inputs.
const DateOnlyLayout = "2006-01-02"

// timeLayouts are tried in order when coercing strings to time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateOnlyLayout,
}

// Text stringifies a decoded JSON value.
// Returns false for nil.
func Text(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
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
	case decimal.Decimal:
		return t.String(), true
	case time.Time:
		return t.Format(time.RFC3339), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// Number coerces a decoded JSON value to a decimal.
// Strings are trimmed; empty strings and non-numeric text fail.
func Number(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case json.Number:
		return ParseNumber(t.String())
	case string:
		return ParseNumber(t)
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	default:
		return decimal.Decimal{}, false
	}
}

// ParseNumber parses user or backend text as a decimal.
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Time coerces a decoded JSON value to a time.
// Numbers are read as epoch milliseconds.
func Time(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		ts, _, ok := ParseTime(t)
		return ts, ok
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	case int64:
		return time.UnixMilli(t).UTC(), true
	default:
		return time.Time{}, false
	}
}

// ParseTime parses text in any supported layout. dateOnly reports whether
// the input carried no time-of-day component.
func ParseTime(s string) (ts time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return parsed, layout == DateOnlyLayout, true
		}
	}
	return time.Time{}, false, false
}
