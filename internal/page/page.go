// Package page describes the list pages of the back office: which remote
// resource a page shows, how its rows are filtered, sorted and paged, and
// which row actions it offers.
//
// Pages are declared in CUE (see the defaults directory) and compiled by
// package compiler. This package only holds the compiled form.
package page

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/backoffice/internal/action"
	"github.com/roach88/backoffice/internal/filter"
	"github.com/roach88/backoffice/internal/record"
	"github.com/roach88/backoffice/internal/view"
)

// Column is one rendered column of a list.
type Column struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

// Param value types. Text is the default.
const (
	ParamText   = "string"
	ParamNumber = "number"
	ParamBool   = "bool"
)

// Param is an input an action asks for before confirmation.
type Param struct {
	Name     string   `json:"name"`
	Label    string   `json:"label,omitempty"`
	Type     string   `json:"type,omitempty"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// Value converts raw input into the JSON value sent to the backend.
func (p Param) Value(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch p.Type {
	case ParamNumber:
		d, ok := record.ParseNumber(raw)
		if !ok {
			return nil, action.Invalid(p.Name, "must be a number, got %q", raw)
		}
		return json.Number(d.String()), nil
	case ParamBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, action.Invalid(p.Name, "must be true or false, got %q", raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}

// Action targets.
const (
	TargetRow  = "row"
	TargetPage = "page"
)

// Action binds a row action of a page to a registered handler.
type Action struct {
	Name        string        `json:"name"`
	Handler     string        `json:"handler"`
	Label       string        `json:"label"`
	Destructive bool          `json:"destructive"`
	Dialog      action.Dialog `json:"dialog"`
	StatusField string        `json:"status_field,omitempty"`
	Terminal    []string      `json:"terminal,omitempty"`
	Params      []Param       `json:"params,omitempty"`

	// Target is TargetPage for actions that need no record, such as
	// adding one. Empty means TargetRow.
	Target string `json:"target,omitempty"`

	// Resource overrides the path the handler writes to.
	Resource string `json:"resource,omitempty"`
}

// OnPage reports whether the action runs without a record.
func (a *Action) OnPage() bool {
	return a.Target == TargetPage
}

// Endpoint is the collection path the action writes to on pg.
func (a *Action) Endpoint(pg *Page) string {
	if a.Resource != "" {
		return a.Resource
	}
	return pg.Resource
}

// Body converts the given parameters into a request body. Blank values
// are left out; every key must be declared.
func (a *Action) Body(params map[string]string) (map[string]any, error) {
	body := make(map[string]any, len(params))
	for _, p := range a.Params {
		raw, ok := params[p.Name]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := p.Value(raw)
		if err != nil {
			return nil, err
		}
		body[p.Name] = v
	}
	return body, nil
}

// Param looks up a declared parameter by name.
func (a *Action) Param(name string) (Param, bool) {
	i := slices.IndexFunc(a.Params, func(p Param) bool { return p.Name == name })
	if i < 0 {
		return Param{}, false
	}
	return a.Params[i], true
}

// CheckParams validates user input against the declared parameters.
func (a *Action) CheckParams(params map[string]string) error {
	for name := range params {
		if _, ok := a.Param(name); !ok {
			return action.Invalid(name, "unknown parameter for %s", a.Name)
		}
	}
	for _, p := range a.Params {
		v := strings.TrimSpace(params[p.Name])
		if v == "" {
			if p.Required {
				return action.Invalid(p.Name, "required")
			}
			continue
		}
		if len(p.Options) > 0 && !slices.Contains(p.Options, v) {
			return action.Invalid(p.Name, "must be one of %s", strings.Join(p.Options, ", "))
		}
		if _, err := p.Value(v); err != nil {
			return err
		}
	}
	return nil
}

// Scope narrows the backend snapshot before filtering.
type Scope struct {
	// Require lists fields that must be present and non-empty.
	Require []string `json:"require,omitempty"`

	// Exclude drops records whose field holds one of the listed values.
	Exclude map[string][]string `json:"exclude,omitempty"`
}

// Empty reports whether the scope keeps every record.
func (s Scope) Empty() bool {
	return len(s.Require) == 0 && len(s.Exclude) == 0
}

// Keep reports whether r belongs to the page.
func (s Scope) Keep(r record.Record) bool {
	for _, field := range s.Require {
		v, ok := r.Text(field)
		if !ok || strings.TrimSpace(v) == "" {
			return false
		}
	}
	for field, values := range s.Exclude {
		v, ok := r.Text(field)
		if ok && slices.Contains(values, strings.TrimSpace(v)) {
			return false
		}
	}
	return true
}

// Page is one compiled list page.
type Page struct {
	Name     string        `json:"name"`
	Title    string        `json:"title"`
	Resource string        `json:"resource"`
	IDField  string        `json:"id_field"`
	PageSize int           `json:"page_size"`
	Sort     view.SortSpec `json:"sort"`
	Columns  []Column      `json:"columns"`
	Fields   filter.Schema `json:"fields,omitempty"`
	Scope    Scope         `json:"scope"`
	Actions  []Action      `json:"actions,omitempty"`
}

// Action looks up a row action by name.
func (p *Page) Action(name string) (*Action, bool) {
	for i := range p.Actions {
		if p.Actions[i].Name == name {
			return &p.Actions[i], true
		}
	}
	return nil, false
}

// ActionNames returns the action names in declaration order.
func (p *Page) ActionNames() []string {
	names := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		names[i] = a.Name
	}
	return names
}

// ListOptions returns the view.List configuration the page asks for.
func (p *Page) ListOptions() []view.ListOption {
	opts := []view.ListOption{
		view.WithPageSize(p.PageSize),
		view.WithDefaultSort(p.Sort),
	}
	if !p.Scope.Empty() {
		opts = append(opts, view.WithScope(p.Scope.Keep))
	}
	return opts
}

// Catalogue is the set of pages known to the CLI, keyed by name.
type Catalogue struct {
	pages map[string]*Page
}

// NewCatalogue indexes pages. Duplicate names are an error.
func NewCatalogue(pages ...*Page) (*Catalogue, error) {
	c := &Catalogue{pages: make(map[string]*Page, len(pages))}
	for _, p := range pages {
		if _, dup := c.pages[p.Name]; dup {
			return nil, fmt.Errorf("duplicate page %q", p.Name)
		}
		c.pages[p.Name] = p
	}
	return c, nil
}

// Get returns the named page.
func (c *Catalogue) Get(name string) (*Page, error) {
	p, ok := c.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q (known: %s)", name, strings.Join(c.Names(), ", "))
	}
	return p, nil
}

// Names returns the page names in sorted order.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.pages))
	for name := range c.pages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// All returns the pages sorted by name.
func (c *Catalogue) All() []*Page {
	out := make([]*Page, 0, len(c.pages))
	for _, name := range c.Names() {
		out = append(out, c.pages[name])
	}
	return out
}

// Len returns the number of pages.
func (c *Catalogue) Len() int {
	return len(c.pages)
}

// Override returns a catalogue holding c's pages replaced or extended by
// other's.
func (c *Catalogue) Override(other *Catalogue) *Catalogue {
	out := &Catalogue{pages: make(map[string]*Page, len(c.pages)+len(other.pages))}
	for name, p := range c.pages {
		out.pages[name] = p
	}
	for name, p := range other.pages {
		out.pages[name] = p
	}
	return out
}
