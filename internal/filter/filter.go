// Package filter decides whether a record passes a set of user-entered
// search constraints.
//
// A Spec maps field paths to predicates. Predicates with an empty value are
// absent: they never constrain anything and never mean "match the empty
// string". All active predicates are combined with logical AND; there is no
// OR mode.
//
// Predicate kinds:
//   - contains: case-insensitive substring on the stringified field
//   - equals:   exact match after stringifying both sides, case-folded
//     when the field declares Fold
//   - range:    min <= value <= max for numbers or dates, open on a missing bound
//
// A record whose field is missing never matches an active predicate. A range
// predicate also rejects a field that does not parse as its value type
// (fail closed).
package filter

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/roach88/backoffice/internal/record"
)

// Kind selects how a predicate compares.
type Kind string

const (
	KindContains Kind = "contains"
	KindEquals   Kind = "equals"
	KindRange    Kind = "range"
)

// ValueType is the type a range predicate compares in.
type ValueType string

const (
	TypeNumber ValueType = "number"
	TypeDate   ValueType = "date"
)

// Predicate is one field-level match rule.
type Predicate struct {
	Kind Kind      `json:"kind"`
	Type ValueType `json:"type,omitempty"` // range only

	// Value is the operand of contains and equals.
	Value string `json:"value,omitempty"`

	// Fold makes equals ignore case.
	Fold bool `json:"fold,omitempty"`

	// Min and Max bound a range; an empty bound is unbounded on that side.
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

// Spec is the full set of search constraints for one list view.
type Spec map[string]Predicate

// Empty reports whether the predicate constrains nothing.
func (p Predicate) Empty() bool {
	if p.Kind == KindRange {
		return strings.TrimSpace(p.Min) == "" && strings.TrimSpace(p.Max) == ""
	}
	return strings.TrimSpace(p.Value) == ""
}

// Active returns the predicates that constrain something.
func (s Spec) Active() Spec {
	out := make(Spec, len(s))
	for field, p := range s {
		if !p.Empty() {
			out[field] = p
		}
	}
	return out
}

// IsZero reports whether s has no active predicate.
func (s Spec) IsZero() bool {
	for _, p := range s {
		if !p.Empty() {
			return false
		}
	}
	return true
}

// Fields returns the constrained field paths in sorted order.
func (s Spec) Fields() []string {
	return sortedFields(s)
}

// String renders p the way it is typed on the command line: the value,
// or "min..max" for a range.
func (p Predicate) String() string {
	if p.Kind == KindRange {
		return p.Min + RangeSep + p.Max
	}
	return p.Value
}

// Matches reports whether r passes every active predicate of s.
func Matches(r record.Record, s Spec) bool {
	for field, p := range s {
		if p.Empty() {
			continue
		}
		if !p.Match(r, field) {
			return false
		}
	}
	return true
}

// Apply returns the records that pass s, preserving order.
func Apply(records []record.Record, s Spec) []record.Record {
	active := s.Active()
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		if Matches(r, active) {
			out = append(out, r)
		}
	}
	return out
}

// Match evaluates the predicate against the field of r.
// An empty predicate always matches.
func (p Predicate) Match(r record.Record, field string) bool {
	if p.Empty() {
		return true
	}
	v, ok := r.Lookup(field)
	if !ok {
		return false
	}

	switch p.Kind {
	case KindContains:
		s, ok := record.Text(v)
		if !ok {
			return false
		}
		return strings.Contains(fold(s), fold(strings.TrimSpace(p.Value)))
	case KindEquals:
		s, ok := record.Text(v)
		if !ok {
			return false
		}
		want := strings.TrimSpace(p.Value)
		if p.Fold {
			return fold(s) == fold(want)
		}
		return s == want
	case KindRange:
		if p.Type == TypeDate {
			return matchDateRange(v, p.Min, p.Max)
		}
		return matchNumberRange(v, p.Min, p.Max)
	default:
		return false
	}
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func matchNumberRange(v any, minText, maxText string) bool {
	n, ok := record.Number(v)
	if !ok {
		return false
	}
	if lo, set, ok := numberBound(minText); set {
		if !ok || n.LessThan(lo) {
			return false
		}
	}
	if hi, set, ok := numberBound(maxText); set {
		if !ok || n.GreaterThan(hi) {
			return false
		}
	}
	return true
}

// numberBound parses a bound. set is false for an absent bound; ok is false
// when a present bound does not parse, which rejects every record.
func numberBound(s string) (d decimal.Decimal, set bool, ok bool) {
	if strings.TrimSpace(s) == "" {
		return decimal.Decimal{}, false, true
	}
	d, ok = record.ParseNumber(s)
	return d, true, ok
}

func matchDateRange(v any, minText, maxText string) bool {
	ts, ok := record.Time(v)
	if !ok {
		return false
	}
	if strings.TrimSpace(minText) != "" {
		lo, _, ok := record.ParseTime(minText)
		if !ok || ts.Before(lo) {
			return false
		}
	}
	if strings.TrimSpace(maxText) != "" {
		hi, dateOnly, ok := record.ParseTime(maxText)
		if !ok {
			return false
		}
		// a bare date as upper bound covers the whole day
		if dateOnly {
			hi = hi.Add(24*time.Hour - time.Nanosecond)
		}
		if ts.After(hi) {
			return false
		}
	}
	return true
}
