package action

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/roach88/backoffice/internal/record"
)

// Dialog describes the confirmation prompt. The UI layer renders it.
type Dialog struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Confirm string `json:"confirm"`
	Cancel  string `json:"cancel"`
}

// Step is one backend call of a request.
type Step struct {
	Name string

	// Mutating marks steps that change backend state. A failure after a
	// mutating step succeeded is a partial failure.
	Mutating bool

	Run func(ctx context.Context, req *Request) error
}

// PlanFunc validates a request and returns the steps that carry it out.
// It must not perform network calls; an error aborts Trigger and leaves
// the workflow Idle.
type PlanFunc func(req *Request) ([]Step, error)

// Definition is one kind of row action.
type Definition struct {
	Name        string
	Label       string
	Destructive bool
	Dialog      Dialog

	// StatusField and Terminal decide actionability: a record whose
	// StatusField holds one of Terminal is refused.
	StatusField string
	Terminal    []string

	// RemovesRecord drops the row from the cache on success instead of
	// applying the delta.
	RemovesRecord bool

	Plan PlanFunc
}

// Actionable reports whether the action may be triggered on r.
func (d *Definition) Actionable(r record.Record) bool {
	if d.StatusField == "" || len(d.Terminal) == 0 {
		return true
	}
	status, ok := r.Text(d.StatusField)
	if !ok {
		return true
	}
	status = strings.TrimSpace(status)
	return !slices.ContainsFunc(d.Terminal, func(t string) bool {
		return strings.EqualFold(t, status)
	})
}

// Request is one triggered action on one record.
type Request struct {
	ID       string            `json:"id"`
	Page     string            `json:"page"`
	Action   string            `json:"action"`
	RecordID string            `json:"record_id"`
	Record   record.Record     `json:"-"`
	Params   map[string]string `json:"params,omitempty"`

	Status     Status         `json:"-"`
	Delta      map[string]any `json:"delta,omitempty"`
	Completed  []string       `json:"completed,omitempty"`
	FailedStep string         `json:"failed_step,omitempty"`
	Partial    bool           `json:"partial,omitempty"`
	Err        error          `json:"-"`

	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Param returns a trimmed request parameter.
func (r *Request) Param(name string) string {
	return strings.TrimSpace(r.Params[name])
}

// Set records a field change to apply to the cached record on success.
func (r *Request) Set(field string, value any) {
	if r.Delta == nil {
		r.Delta = make(map[string]any)
	}
	r.Delta[field] = value
}

// clone returns a copy safe to hand to callers while the workflow keeps
// mutating its own.
func (r *Request) clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Params = maps.Clone(r.Params)
	c.Delta = maps.Clone(r.Delta)
	c.Completed = slices.Clone(r.Completed)
	return &c
}
