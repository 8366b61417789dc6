package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/backoffice/internal/filter"
	"github.com/roach88/backoffice/internal/page"
)

// Validation error codes (E100-E199)
const (
	ErrPageTitleEmpty    = "E101" // title is required
	ErrPageResourceEmpty = "E102" // resource is required and must be a relative path
	ErrPageNoColumns     = "E103" // at least one column required
	ErrInvalidFilter     = "E104" // filter field kind/type mismatch
	ErrDuplicateName     = "E105" // duplicate column field
	ErrUnknownHandler    = "E106" // action names an unregistered handler
	ErrInvalidPageSize   = "E107" // page_size must be >= 1
	ErrInvalidTerminal   = "E108" // terminal statuses without status_field
	ErrInvalidSort       = "E109" // sort field is blank
	ErrInvalidTarget     = "E110" // page-level action with row-only settings
	ErrInvalidParam      = "E111" // unknown parameter type
)

// ValidationError represents a page validation error.
type ValidationError struct {
	Page    string `json:"page"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] page %s: %s: %s", e.Code, e.Page, e.Field, e.Message)
}

// HandlerSet reports which action handlers exist.
type HandlerSet interface {
	Has(name string) bool
}

// Validate checks a compiled page. Handler names are only checked when
// handlers is non-nil. Returns all errors found (does not fail-fast).
func Validate(p *page.Page, handlers HandlerSet) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Page:    p.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if strings.TrimSpace(p.Title) == "" {
		add("title", ErrPageTitleEmpty, "title is required and must be non-empty")
	}
	res := strings.TrimSpace(p.Resource)
	switch {
	case res == "":
		add("resource", ErrPageResourceEmpty, "resource is required and must be non-empty")
	case strings.HasPrefix(res, "/") || strings.Contains(res, "://"):
		add("resource", ErrPageResourceEmpty, "resource %q must be relative to the API base URL", p.Resource)
	}
	if p.PageSize < 1 {
		add("page_size", ErrInvalidPageSize, "page_size must be at least 1, got %d", p.PageSize)
	}
	if p.Sort.Field == "" && p.Sort.Desc {
		add("sort", ErrInvalidSort, "sort field is empty")
	}

	if len(p.Columns) == 0 {
		add("columns", ErrPageNoColumns, "at least one column is required")
	}
	seen := make(map[string]bool)
	for i, c := range p.Columns {
		if seen[c.Field] {
			add(fmt.Sprintf("columns[%d]", i), ErrDuplicateName, "duplicate column %q", c.Field)
		}
		seen[c.Field] = true
	}

	for _, name := range p.Fields.Names() {
		f := p.Fields[name]
		path := "fields." + name
		switch f.Kind {
		case filter.KindRange:
			if f.Type != filter.TypeNumber && f.Type != filter.TypeDate {
				add(path, ErrInvalidFilter, "range filter needs type number or date")
			}
			if f.Fold {
				add(path, ErrInvalidFilter, "fold only applies to equals filters")
			}
		case filter.KindContains, filter.KindEquals:
			if f.Type != "" {
				add(path, ErrInvalidFilter, "type only applies to range filters")
			}
			if f.Fold && f.Kind == filter.KindContains {
				add(path, ErrInvalidFilter, "fold only applies to equals filters")
			}
		default:
			add(path, ErrInvalidFilter, "unknown kind %q", f.Kind)
		}
	}

	for _, a := range p.Actions {
		path := "actions." + a.Name
		if handlers != nil && !handlers.Has(a.Handler) {
			add(path+".handler", ErrUnknownHandler, "no handler registered as %q", a.Handler)
		}
		if len(a.Terminal) > 0 && a.StatusField == "" {
			add(path+".terminal", ErrInvalidTerminal, "terminal statuses need a status_field")
		}
		switch a.Target {
		case "", page.TargetRow:
		case page.TargetPage:
			if a.StatusField != "" || len(a.Terminal) > 0 {
				add(path+".target", ErrInvalidTarget, "page actions have no record status to check")
			}
		default:
			add(path+".target", ErrInvalidTarget, "target must be row or page, got %q", a.Target)
		}
		if r := a.Resource; strings.HasPrefix(r, "/") || strings.Contains(r, "://") {
			add(path+".resource", ErrPageResourceEmpty, "resource %q must be relative to the API base URL", r)
		}
		for _, prm := range a.Params {
			switch prm.Type {
			case "", page.ParamText, page.ParamNumber, page.ParamBool:
			default:
				add(path+".params."+prm.Name, ErrInvalidParam, "unknown parameter type %q", prm.Type)
			}
		}
	}

	return errs
}
