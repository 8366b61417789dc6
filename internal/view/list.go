package view

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/backoffice/internal/filter"
	"github.com/roach88/backoffice/internal/record"
)

// ErrStale is returned by Refresh when a newer fetch started while this one
// was in flight. The snapshot was discarded.
var ErrStale = errors.New("stale list response discarded")

// Source fetches a full collection snapshot. *remote.Collection satisfies it.
type Source interface {
	List(ctx context.Context) ([]record.Record, error)
}

// List is the cached state of one list view: the last accepted snapshot
// plus the user's filter, sort and page.
//
// Thread-safety: all methods are safe for concurrent use.
type List struct {
	mu sync.Mutex

	idField     string
	scope       func(record.Record) bool
	defaultSort SortSpec
	defaultSize int
	seq         Sequencer
	logger      *slog.Logger

	records []record.Record
	loaded  bool
	filter  filter.Spec
	sort    SortSpec
	page    int
	size    int
}

// ListOption configures a List.
type ListOption func(*List)

// WithPageSize sets the initial and reset page size.
func WithPageSize(n int) ListOption {
	return func(l *List) { l.defaultSize = n }
}

// WithDefaultSort sets the sort applied initially and after Reset.
func WithDefaultSort(s SortSpec) ListOption {
	return func(l *List) { l.defaultSort = s }
}

// WithScope restricts the list to records for which keep returns true.
// Out-of-scope records are never shown and never counted.
func WithScope(keep func(record.Record) bool) ListOption {
	return func(l *List) { l.scope = keep }
}

// WithSequencer replaces the fetch token source.
func WithSequencer(s Sequencer) ListOption {
	return func(l *List) { l.seq = s }
}

// WithListLogger sets the logger.
func WithListLogger(logger *slog.Logger) ListOption {
	return func(l *List) { l.logger = logger }
}

// NewList creates an empty list view over records keyed by idField.
func NewList(idField string, opts ...ListOption) *List {
	if idField == "" {
		idField = record.DefaultIDField
	}
	l := &List{
		idField:     idField,
		defaultSize: DefaultPageSize,
		seq:         NewClock(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.defaultSize < 1 {
		l.defaultSize = DefaultPageSize
	}
	l.filter = filter.Spec{}
	l.sort = l.defaultSort
	l.page = 1
	l.size = l.defaultSize
	return l
}

// IDField returns the identifier field of the listed records.
func (l *List) IDField() string {
	return l.idField
}

// Begin issues the token for a new fetch. Any fetch begun earlier becomes
// stale.
func (l *List) Begin() Token {
	return Token(l.seq.Next())
}

// Load replaces the cached snapshot if tok is still the latest token.
// Returns false, leaving the cache untouched, for a stale response.
func (l *List) Load(tok Token, records []record.Record) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if int64(tok) != l.seq.Current() {
		l.logger.Debug("stale list response ignored", "token", int64(tok), "latest", l.seq.Current())
		return false
	}
	l.records = slices.Clone(records)
	l.loaded = true
	return true
}

// Refresh fetches a fresh snapshot from src and loads it.
// On error the previous snapshot stays in place.
func (l *List) Refresh(ctx context.Context, src Source) error {
	tok := l.Begin()
	recs, err := src.List(ctx)
	if err != nil {
		return err
	}
	if !l.Load(tok, recs) {
		return ErrStale
	}
	return nil
}

// Loaded reports whether any snapshot has been accepted.
func (l *List) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// SetFilter replaces the filter and returns to page 1.
func (l *List) SetFilter(spec filter.Spec) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter = spec.Active()
	l.page = 1
}

// SetSort replaces the sort.
func (l *List) SetSort(s SortSpec) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sort = s
}

// SetPage requests a page. The value is clamped when the view is built.
func (l *List) SetPage(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.page = n
}

// SetPageSize changes the page size and returns to page 1.
func (l *List) SetPageSize(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < 1 {
		n = l.defaultSize
	}
	l.size = n
	l.page = 1
}

// Reset clears the filter, restores the default sort and page size, and
// returns to page 1.
func (l *List) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter = filter.Spec{}
	l.sort = l.defaultSort
	l.size = l.defaultSize
	l.page = 1
}

// Filter returns a copy of the active filter.
func (l *List) Filter() filter.Spec {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(filter.Spec, len(l.filter))
	for k, v := range l.filter {
		out[k] = v
	}
	return out
}

// SortSpec returns the current sort.
func (l *List) SortSpec() SortSpec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sort
}

// View computes the visible page: scope, filter, sort, paginate.
// The stored page number is clamped to the result.
func (l *List) View() Page {
	l.mu.Lock()
	defer l.mu.Unlock()

	page := Paginate(l.visible(), PageState{Current: l.page, Size: l.size})
	l.page = page.State.Current
	return page
}

// Matching returns every record that passes scope and filter, sorted,
// without pagination.
func (l *List) Matching() []record.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visible()
}

func (l *List) visible() []record.Record {
	recs := l.records
	if l.scope != nil {
		scoped := make([]record.Record, 0, len(recs))
		for _, r := range recs {
			if l.scope(r) {
				scoped = append(scoped, r)
			}
		}
		recs = scoped
	}
	return Sort(filter.Apply(recs, l.filter), l.sort)
}

// Records returns the cached snapshot, unfiltered.
func (l *List) Records() []record.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.records)
}

// Find returns the cached record with the given id. A record outside the
// list's scope is reported as missing, the filter is not consulted.
func (l *List) Find(id string) (record.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := record.IndexOf(l.records, l.idField, id)
	if i < 0 {
		return nil, false
	}
	if l.scope != nil && !l.scope(l.records[i]) {
		return nil, false
	}
	return l.records[i], true
}

// Apply merges delta into the cached record with the given id.
// Reports false if no such record is cached.
func (l *List) Apply(id string, delta map[string]any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, ok := record.Replace(l.records, l.idField, id, delta)
	if ok {
		l.records = next
	}
	return ok
}

// Drop removes the cached record with the given id.
func (l *List) Drop(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, ok := record.Remove(l.records, l.idField, id)
	if ok {
		l.records = next
	}
	return ok
}
