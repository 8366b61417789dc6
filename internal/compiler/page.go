package compiler

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/backoffice/internal/action"
	"github.com/roach88/backoffice/internal/filter"
	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/view"
)

// schemaSource constrains every loaded file: `page: [string]: #Page`.
//
//go:embed schema.cue
var schemaSource []byte

// CompilePage parses a CUE value into a page.Page.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the page struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`page: deposits: { ... }`)
//	p, err := CompilePage(v.LookupPath(cue.ParsePath("page.deposits")))
//
// Defaults (id field, page size, column labels) are only filled in when the
// value was unified with the page schema first, as Load* do.
func CompilePage(v cue.Value) (*page.Page, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &page.Page{IDField: "_id", PageSize: view.DefaultPageSize}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = unquote(labels[len(labels)-1].String())
	}

	var err error
	if p.Title, err = requiredString(v, "title"); err != nil {
		return nil, err
	}
	if p.Resource, err = requiredString(v, "resource"); err != nil {
		return nil, err
	}
	if s, ok, err := optionalString(v, "id_field"); err != nil {
		return nil, err
	} else if ok {
		p.IDField = s
	}
	if sizeVal := v.LookupPath(cue.ParsePath("page_size")); sizeVal.Exists() {
		n, err := sizeVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.PageSize = int(n)
	}
	if s, ok, err := optionalString(v, "sort"); err != nil {
		return nil, err
	} else if ok {
		p.Sort = view.ParseSort(s)
	}

	if p.Columns, err = parseColumns(v); err != nil {
		return nil, err
	}
	if p.Fields, err = parseFields(v); err != nil {
		return nil, err
	}
	if p.Scope, err = parseScope(v); err != nil {
		return nil, err
	}
	if p.Actions, err = parseActions(v); err != nil {
		return nil, err
	}

	return p, nil
}

func parseColumns(v cue.Value) ([]page.Column, error) {
	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{
			Field:   "columns",
			Message: "columns are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := colsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var cols []page.Column
	for iter.Next() {
		colVal := iter.Value()
		field, err := requiredString(colVal, "field")
		if err != nil {
			return nil, err
		}
		label, ok, err := optionalString(colVal, "label")
		if err != nil {
			return nil, err
		}
		if !ok {
			label = field
		}
		cols = append(cols, page.Column{Field: field, Label: label})
	}
	return cols, nil
}

func parseFields(v cue.Value) (filter.Schema, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, nil
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	schema := make(filter.Schema)
	for iter.Next() {
		fv := iter.Value()
		kind, err := requiredString(fv, "kind")
		if err != nil {
			return nil, err
		}
		f := filter.Field{Kind: filter.Kind(kind)}
		if typ, ok, err := optionalString(fv, "type"); err != nil {
			return nil, err
		} else if ok {
			f.Type = filter.ValueType(typ)
		}
		if label, ok, err := optionalString(fv, "label"); err != nil {
			return nil, err
		} else if ok {
			f.Label = label
		}
		if fold := fv.LookupPath(cue.ParsePath("fold")); fold.Exists() {
			if f.Fold, err = fold.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		schema[iter.Selector().Unquoted()] = f
	}
	return schema, nil
}

func parseScope(v cue.Value) (page.Scope, error) {
	var scope page.Scope

	scopeVal := v.LookupPath(cue.ParsePath("scope"))
	if !scopeVal.Exists() {
		return scope, nil
	}

	var err error
	if scope.Require, err = stringList(scopeVal.LookupPath(cue.ParsePath("require"))); err != nil {
		return scope, err
	}

	exclVal := scopeVal.LookupPath(cue.ParsePath("exclude"))
	if exclVal.Exists() {
		iter, err := exclVal.Fields()
		if err != nil {
			return scope, formatCUEError(err)
		}
		scope.Exclude = make(map[string][]string)
		for iter.Next() {
			values, err := stringList(iter.Value())
			if err != nil {
				return scope, err
			}
			scope.Exclude[iter.Selector().Unquoted()] = values
		}
	}
	return scope, nil
}

// parseActions extracts row actions in declaration order.
func parseActions(v cue.Value) ([]page.Action, error) {
	var actions []page.Action

	actionVal := v.LookupPath(cue.ParsePath("actions"))
	if !actionVal.Exists() {
		return actions, nil
	}

	iter, err := actionVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Selector().Unquoted()
		av := iter.Value()

		a := page.Action{Name: name, Label: name}
		if a.Handler, err = requiredString(av, "handler"); err != nil {
			return nil, err
		}
		if label, ok, err := optionalString(av, "label"); err != nil {
			return nil, err
		} else if ok {
			a.Label = label
		}
		if a.Target, _, err = optionalString(av, "target"); err != nil {
			return nil, err
		}
		if a.Resource, _, err = optionalString(av, "resource"); err != nil {
			return nil, err
		}
		if dv := av.LookupPath(cue.ParsePath("destructive")); dv.Exists() {
			if a.Destructive, err = dv.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if a.StatusField, _, err = optionalString(av, "status_field"); err != nil {
			return nil, err
		}
		if a.Terminal, err = stringList(av.LookupPath(cue.ParsePath("terminal"))); err != nil {
			return nil, err
		}
		if a.Dialog, err = parseDialog(av, a); err != nil {
			return nil, err
		}
		if a.Params, err = parseParams(av); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	return actions, nil
}

func parseDialog(v cue.Value, a page.Action) (action.Dialog, error) {
	d := action.Dialog{
		Title:   a.Label + "?",
		Confirm: "Yes",
		Cancel:  "No",
	}
	dv := v.LookupPath(cue.ParsePath("dialog"))
	if !dv.Exists() {
		return d, nil
	}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"title", &d.Title},
		{"body", &d.Body},
		{"confirm", &d.Confirm},
		{"cancel", &d.Cancel},
	} {
		s, ok, err := optionalString(dv, f.name)
		if err != nil {
			return d, err
		}
		if ok {
			*f.dst = s
		}
	}
	return d, nil
}

func parseParams(v cue.Value) ([]page.Param, error) {
	pv := v.LookupPath(cue.ParsePath("params"))
	if !pv.Exists() {
		return nil, nil
	}
	iter, err := pv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var params []page.Param
	for iter.Next() {
		name := iter.Selector().Unquoted()
		p := page.Param{Name: name, Label: name, Required: true}
		if label, ok, err := optionalString(iter.Value(), "label"); err != nil {
			return nil, err
		} else if ok {
			p.Label = label
		}
		if p.Type, _, err = optionalString(iter.Value(), "type"); err != nil {
			return nil, err
		}
		if rv := iter.Value().LookupPath(cue.ParsePath("required")); rv.Exists() {
			if p.Required, err = rv.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if p.Options, err = stringList(iter.Value().LookupPath(cue.ParsePath("options"))); err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	s, ok, err := optionalString(v, field)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() || !fv.IsConcrete() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func stringList(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// unquote strips the quotes CUE keeps on labels like "adjust-balance".
func unquote(label string) string {
	return strings.Trim(label, `"`)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
