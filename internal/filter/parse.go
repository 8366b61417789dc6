package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/backoffice/internal/record"
)

// Filter validation error codes (E200-E209)
const (
	ErrUnknownField  = "E200" // field not declared filterable
	ErrMalformedTerm = "E201" // term is not field=value
	ErrBadBound      = "E202" // range bound does not parse
	ErrInvertedRange = "E203" // min greater than max
	ErrBadKind       = "E204" // unknown predicate kind or value type
)

// RangeSep separates the bounds of a range term: "amount=100..500".
const RangeSep = ".."

// Field declares how one field of a page may be filtered.
type Field struct {
	Kind  Kind      `json:"kind"`
	Type  ValueType `json:"type,omitempty"`
	Label string    `json:"label,omitempty"`
	Fold  bool      `json:"fold,omitempty"` // equals ignores case
}

// Schema maps filterable field paths to their declaration.
type Schema map[string]Field

// Names returns the declared field paths in sorted order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidationError is a filter form error caught before any request.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem in a filter form.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// IsValidation reports whether err came from filter form validation.
func IsValidation(err error) bool {
	var ve ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}

// Parse builds a Spec from "field=value" and "field=min..max" terms.
// Every term is checked against schema; all problems are reported together.
// A term with an empty value is accepted and leaves the field unconstrained.
// A range field given a single value without ".." matches that value
// exactly: "amount=100" is "amount=100..100", and a bare date covers the
// whole day.
func Parse(terms []string, schema Schema) (Spec, error) {
	spec := make(Spec, len(terms))
	var errs ValidationErrors

	for _, term := range terms {
		name, value, ok := strings.Cut(term, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			errs = append(errs, ValidationError{
				Field:   term,
				Message: "expected field=value",
				Code:    ErrMalformedTerm,
			})
			continue
		}
		decl, known := schema[name]
		if !known {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("not filterable (have: %s)", strings.Join(schema.Names(), ", ")),
				Code:    ErrUnknownField,
			})
			continue
		}

		p := Predicate{Kind: decl.Kind, Type: decl.Type}
		if decl.Kind == KindRange {
			lo, hi, isRange := strings.Cut(value, RangeSep)
			p.Min = strings.TrimSpace(lo)
			p.Max = strings.TrimSpace(hi)
			if !isRange {
				p.Max = p.Min
			}
		} else {
			p.Fold = decl.Kind == KindEquals && decl.Fold
			p.Value = strings.TrimSpace(value)
		}
		spec[name] = p
	}

	errs = append(errs, Validate(spec)...)
	if len(errs) > 0 {
		return nil, errs
	}
	return spec, nil
}

// Validate checks the predicates of spec.
// Returns all errors found (does not fail-fast).
func Validate(spec Spec) ValidationErrors {
	var errs ValidationErrors
	for _, name := range sortedFields(spec) {
		p := spec[name]
		switch p.Kind {
		case KindContains, KindEquals:
		case KindRange:
			errs = append(errs, validateRange(name, p)...)
		default:
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("unknown predicate kind %q", p.Kind),
				Code:    ErrBadKind,
			})
		}
	}
	return errs
}

func validateRange(name string, p Predicate) ValidationErrors {
	if p.Empty() {
		return nil
	}
	var errs ValidationErrors
	switch p.Type {
	case TypeNumber, "":
		lo, loOK := parseBound(p.Min, record.ParseNumber)
		hi, hiOK := parseBound(p.Max, record.ParseNumber)
		errs = append(errs, boundErrors(name, p, loOK, hiOK, "number")...)
		if len(errs) == 0 && p.Min != "" && p.Max != "" && lo.GreaterThan(hi) {
			errs = append(errs, ValidationError{Field: name, Message: "min is greater than max", Code: ErrInvertedRange})
		}
	case TypeDate:
		parseDate := func(s string) (time.Time, bool) {
			ts, _, ok := record.ParseTime(s)
			return ts, ok
		}
		lo, loOK := parseBound(p.Min, parseDate)
		hi, hiOK := parseBound(p.Max, parseDate)
		errs = append(errs, boundErrors(name, p, loOK, hiOK, "date")...)
		if len(errs) == 0 && p.Min != "" && p.Max != "" && lo.After(hi) {
			errs = append(errs, ValidationError{Field: name, Message: "min is after max", Code: ErrInvertedRange})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("unknown range type %q", p.Type),
			Code:    ErrBadKind,
		})
	}
	return errs
}

// parseBound treats an empty bound as valid and unset.
func parseBound[T any](s string, parse func(string) (T, bool)) (T, bool) {
	var zero T
	if strings.TrimSpace(s) == "" {
		return zero, true
	}
	return parse(s)
}

func boundErrors(name string, p Predicate, loOK, hiOK bool, typ string) ValidationErrors {
	var errs ValidationErrors
	if !loOK {
		errs = append(errs, ValidationError{Field: name, Message: fmt.Sprintf("min %q is not a %s", p.Min, typ), Code: ErrBadBound})
	}
	if !hiOK {
		errs = append(errs, ValidationError{Field: name, Message: fmt.Sprintf("max %q is not a %s", p.Max, typ), Code: ErrBadBound})
	}
	return errs
}

func sortedFields(spec Spec) []string {
	names := make([]string, 0, len(spec))
	for name := range spec {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
