package backoffice

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/backoffice/internal/action"
	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/remote"
)

// Env is what handlers see when planning a request.
type Env struct {
	Client *remote.Client

	// Operator is written into audit fields ("operator") of status
	// changes. It is the signed-in admin's name.
	Operator string

	Now func() time.Time
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// stamp formats the audit time written with status changes.
func (e Env) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// PlanFunc builds the steps of one request for action pa on page pg.
type PlanFunc func(env Env, pg *page.Page, pa *page.Action, req *action.Request) ([]action.Step, error)

// Handler is a named kind of row action.
type Handler struct {
	Name string

	// RemovesRecord drops the row from the cached list on success.
	RemovesRecord bool

	// OnPage handlers run without a record and may only back page
	// actions; every other handler needs a row.
	OnPage bool

	Plan PlanFunc
}

// Registry maps handler names to handlers.
//
// Thread-safety: a Registry is read-only after construction.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry indexes handlers. Duplicate or unnamed handlers are an error.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		if h.Name == "" || h.Plan == nil {
			return nil, fmt.Errorf("handler %q: name and plan are required", h.Name)
		}
		if _, dup := r.handlers[h.Name]; dup {
			return nil, fmt.Errorf("duplicate handler %q", h.Name)
		}
		r.handlers[h.Name] = h
	}
	return r, nil
}

// DefaultRegistry returns the built-in handlers.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtins()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Get returns the named handler.
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definition resolves the named action of pg into a workflow definition.
// Declared parameters are checked before the handler plans.
func (r *Registry) Definition(env Env, pg *page.Page, actionName string) (*action.Definition, error) {
	pa, ok := pg.Action(actionName)
	if !ok {
		return nil, fmt.Errorf("page %s has no action %q (actions: %s)",
			pg.Name, actionName, strings.Join(pg.ActionNames(), ", "))
	}
	h, ok := r.handlers[pa.Handler]
	if !ok {
		return nil, fmt.Errorf("page %s action %s: no handler %q", pg.Name, pa.Name, pa.Handler)
	}
	if env.Client == nil {
		return nil, fmt.Errorf("page %s action %s: no API client", pg.Name, pa.Name)
	}
	if h.OnPage != pa.OnPage() {
		return nil, fmt.Errorf("page %s action %s: handler %q does not run on a %s",
			pg.Name, pa.Name, h.Name, targetName(pa))
	}

	return &action.Definition{
		Name:          h.Name,
		Label:         pa.Label,
		Destructive:   pa.Destructive,
		Dialog:        pa.Dialog,
		StatusField:   pa.StatusField,
		Terminal:      pa.Terminal,
		RemovesRecord: h.RemovesRecord,
		Plan: func(req *action.Request) ([]action.Step, error) {
			if err := pa.CheckParams(req.Params); err != nil {
				return nil, err
			}
			if !pa.OnPage() && strings.TrimSpace(req.RecordID) == "" {
				return nil, action.Invalid(pg.IDField, "record has no id")
			}
			return h.Plan(env, pg, pa, req)
		},
	}, nil
}

func targetName(pa *page.Action) string {
	if pa.OnPage() {
		return page.TargetPage
	}
	return page.TargetRow
}
