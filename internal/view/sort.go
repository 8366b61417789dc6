package view

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/backoffice/internal/record"
)

// SortSpec orders a list by one field. The zero value means "no sort":
// records keep the backend order.
type SortSpec struct {
	Field string `json:"field,omitempty"`
	Desc  bool   `json:"desc,omitempty"`
}

// None reports whether s leaves order untouched.
func (s SortSpec) None() bool {
	return strings.TrimSpace(s.Field) == ""
}

// ParseSort reads "field" or "-field" (descending).
func ParseSort(s string) SortSpec {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return SortSpec{Field: strings.TrimSpace(s[1:]), Desc: true}
	}
	return SortSpec{Field: s}
}

func (s SortSpec) String() string {
	if s.None() {
		return ""
	}
	if s.Desc {
		return "-" + s.Field
	}
	return s.Field
}

// key ranks: numbers, then dates, then values that parse as neither.
const (
	rankNumber = iota
	rankDate
	rankOther
)

type sortKey struct {
	rank int
	num  decimal.Decimal
	ts   time.Time
}

func keyOf(r record.Record, field string) sortKey {
	v, ok := r.Lookup(field)
	if !ok {
		return sortKey{rank: rankOther}
	}
	if n, ok := record.Number(v); ok {
		return sortKey{rank: rankNumber, num: n}
	}
	if ts, ok := record.Time(v); ok {
		return sortKey{rank: rankDate, ts: ts}
	}
	return sortKey{rank: rankOther}
}

// Sort returns a stably sorted copy of records.
//
// Values are compared numerically when both coerce to numbers and
// chronologically when both coerce to dates. Values that parse as neither
// always sort last, whatever the direction, and keep their relative order.
func Sort(records []record.Record, spec SortSpec) []record.Record {
	out := slices.Clone(records)
	if spec.None() || len(out) < 2 {
		return out
	}

	type keyed struct {
		rec record.Record
		key sortKey
	}
	items := make([]keyed, len(out))
	for i, r := range out {
		items[i] = keyed{rec: r, key: keyOf(r, spec.Field)}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		if a.key.rank != b.key.rank {
			return a.key.rank - b.key.rank
		}
		var c int
		switch a.key.rank {
		case rankNumber:
			c = a.key.num.Cmp(b.key.num)
		case rankDate:
			c = a.key.ts.Compare(b.key.ts)
		default:
			return 0
		}
		if spec.Desc {
			return -c
		}
		return c
	})

	for i, it := range items {
		out[i] = it.rec
	}
	return out
}
