package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/backoffice/internal/record"
)

// Cache is the cached list a workflow reflects outcomes into.
// *view.List satisfies it.
type Cache interface {
	Apply(id string, delta map[string]any) bool
	Drop(id string) bool
}

// Level grades a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is the transient message shown after an outcome.
type Notification struct {
	Level     Level  `json:"level"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// Notifier shows notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Entry is one journal row: the final outcome of a request.
type Entry struct {
	RequestID  string    `json:"request_id"`
	Page       string    `json:"page"`
	Action     string    `json:"action"`
	RecordID   string    `json:"record_id"`
	Status     string    `json:"status"`
	FailedStep string    `json:"failed_step,omitempty"`
	Partial    bool      `json:"partial"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Journal persists request outcomes.
type Journal interface {
	RecordAction(ctx context.Context, e Entry) error
}

// Workflow runs row actions for one list view.
//
// Thread-safety: all methods are safe for concurrent use. Steps run
// without holding the lock; the InFlight state keeps other requests out.
type Workflow struct {
	mu sync.Mutex

	page     string
	cache    Cache
	notifier Notifier
	journal  Journal
	ids      IDGenerator
	now      func() time.Time
	logger   *slog.Logger

	def   *Definition
	req   *Request
	steps []Step
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithNotifier sets where outcome notifications go.
func WithNotifier(n Notifier) Option {
	return func(w *Workflow) { w.notifier = n }
}

// WithJournal sets where outcomes are persisted.
func WithJournal(j Journal) Option {
	return func(w *Workflow) { w.journal = j }
}

// WithIDGenerator overrides request id generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(w *Workflow) { w.ids = g }
}

// WithNow overrides the wall clock.
func WithNow(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// NewWorkflow creates an Idle workflow for the named page reflecting
// outcomes into cache. cache may be nil when there is no cached list.
func NewWorkflow(page string, cache Cache, opts ...Option) *Workflow {
	w := &Workflow{
		page:   page,
		cache:  cache,
		ids:    UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Status returns the current state.
func (w *Workflow) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.req == nil {
		return Idle
	}
	return w.req.Status
}

// Busy reports whether a request is in flight. The triggering control
// should be disabled while Busy.
func (w *Workflow) Busy() bool {
	return w.Status() == InFlight
}

// Current returns a copy of the pending request, or nil when Idle.
func (w *Workflow) Current() *Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.req.clone()
}

// Trigger opens the confirmation for def on rec.
//
// A non-actionable record returns ErrNotActionable, a plan rejection
// returns the validation error, and a pending request returns ErrBusy. In
// all three cases no state changes and nothing is sent.
func (w *Workflow) Trigger(def *Definition, rec record.Record, recordID string, params map[string]string) (*Request, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.req != nil {
		return nil, ErrBusy
	}
	if !def.Actionable(rec) {
		return nil, fmt.Errorf("%s on %s: %w", def.Name, recordID, ErrNotActionable)
	}
	if def.Plan == nil {
		return nil, fmt.Errorf("action %s has no plan", def.Name)
	}

	req := &Request{
		ID:        w.ids.Generate(),
		Page:      w.page,
		Action:    def.Name,
		RecordID:  recordID,
		Record:    rec.Clone(),
		Params:    params,
		Status:    Confirming,
		CreatedAt: w.now().UTC(),
	}
	steps, err := def.Plan(req)
	if err != nil {
		return nil, err
	}

	w.def = def
	w.req = req
	w.steps = steps
	w.logger.Debug("action confirming", "page", w.page, "action", def.Name, "record_id", recordID, "request_id", req.ID)
	return req.clone(), nil
}

// Cancel abandons a Confirming request. No step runs.
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.req == nil || w.req.Status != Confirming {
		return &TransitionError{Op: "cancel", From: w.statusLocked()}
	}
	w.logger.Debug("action cancelled", "page", w.page, "action", w.req.Action, "request_id", w.req.ID)
	w.reset()
	return nil
}

// Confirm runs the steps of the Confirming request in order and returns
// the finished request. The returned error is the step failure, if any.
func (w *Workflow) Confirm(ctx context.Context) (*Request, error) {
	w.mu.Lock()
	if w.req == nil || w.req.Status != Confirming {
		from := w.statusLocked()
		w.mu.Unlock()
		return nil, &TransitionError{Op: "confirm", From: from}
	}
	w.req.Status = InFlight
	req, def, steps := w.req.clone(), w.def, w.steps
	w.mu.Unlock()

	w.logger.Info("action started", "page", w.page, "action", def.Name, "record_id", req.RecordID, "request_id", req.ID)
	runErr := w.run(ctx, req, steps)

	w.mu.Lock()
	w.req = req
	req.FinishedAt = w.now().UTC()
	if runErr == nil {
		req.Status = Succeeded
		w.applyLocked(def, req)
	} else {
		req.Status = Failed
		req.Err = runErr
	}
	out := req.clone()
	w.mu.Unlock()

	w.report(ctx, def, out)
	return out, runErr
}

// run executes steps against req, a private copy of the pending request.
func (w *Workflow) run(ctx context.Context, req *Request, steps []Step) error {
	mutated := false
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return w.stepFailure(req, step, mutated, err)
		}
		if err := step.Run(ctx, req); err != nil {
			return w.stepFailure(req, step, mutated, err)
		}
		req.Completed = append(req.Completed, step.Name)
		if step.Mutating {
			mutated = true
		}
	}
	return nil
}

func (w *Workflow) stepFailure(req *Request, step Step, mutated bool, err error) error {
	req.FailedStep = step.Name
	if !mutated {
		return &StepError{Step: step.Name, Err: err}
	}
	req.Partial = true
	return &PartialFailure{
		Action:    req.Action,
		RecordID:  req.RecordID,
		Completed: append([]string(nil), req.Completed...),
		Failed:    step.Name,
		Err:       err,
	}
}

// applyLocked reflects a success into the cache. Caller holds w.mu.
func (w *Workflow) applyLocked(def *Definition, req *Request) {
	if w.cache == nil {
		return
	}
	if def.RemovesRecord {
		w.cache.Drop(req.RecordID)
		return
	}
	if len(req.Delta) > 0 {
		w.cache.Apply(req.RecordID, req.Delta)
	}
}

func (w *Workflow) report(ctx context.Context, def *Definition, req *Request) {
	attrs := []any{
		"page", w.page,
		"action", def.Name,
		"record_id", req.RecordID,
		"request_id", req.ID,
		"status", req.Status.String(),
	}

	n := Notification{RequestID: req.ID, Title: def.Label}
	if n.Title == "" {
		n.Title = def.Name
	}
	switch {
	case req.Status == Succeeded:
		w.logger.Info("action succeeded", attrs...)
		n.Level = LevelSuccess
		n.Message = fmt.Sprintf("%s %s: done", def.Name, req.RecordID)
	case req.Partial:
		w.logger.Error("action partially applied", append(attrs,
			"partial_failure", true,
			"completed", req.Completed,
			"failed_step", req.FailedStep,
			"error", req.Err)...)
		n.Level = LevelError
		n.Message = fmt.Sprintf("%s %s failed at %s after earlier steps were applied: %v", def.Name, req.RecordID, req.FailedStep, req.Err)
	default:
		w.logger.Warn("action failed", append(attrs, "failed_step", req.FailedStep, "error", req.Err)...)
		n.Level = LevelError
		n.Message = fmt.Sprintf("%s %s failed: %v", def.Name, req.RecordID, errors.Unwrap(req.Err))
	}

	if w.notifier != nil {
		w.notifier.Notify(n)
	}
	if w.journal != nil {
		entry := Entry{
			RequestID:  req.ID,
			Page:       w.page,
			Action:     def.Name,
			RecordID:   req.RecordID,
			Status:     req.Status.String(),
			FailedStep: req.FailedStep,
			Partial:    req.Partial,
			At:         req.FinishedAt,
		}
		if req.Err != nil {
			entry.Error = req.Err.Error()
		}
		if err := w.journal.RecordAction(ctx, entry); err != nil {
			w.logger.Error("journal write failed", append(attrs, "error", err)...)
		}
	}
}

// Dismiss returns a finished workflow to Idle.
func (w *Workflow) Dismiss() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.req == nil || !w.req.Status.Terminal() {
		return &TransitionError{Op: "dismiss", From: w.statusLocked()}
	}
	w.reset()
	return nil
}

// Run drives one request from Trigger to Dismiss. confirm is asked once,
// after Trigger succeeded; returning false cancels. The finished request is
// returned even on failure.
func (w *Workflow) Run(ctx context.Context, def *Definition, rec record.Record, recordID string, params map[string]string, confirm func(*Request) bool) (*Request, error) {
	req, err := w.Trigger(def, rec, recordID, params)
	if err != nil {
		return nil, err
	}
	if !confirm(req) {
		if err := w.Cancel(); err != nil {
			return nil, err
		}
		req.Status = Idle
		return req, nil
	}
	done, runErr := w.Confirm(ctx)
	if err := w.Dismiss(); err != nil {
		return done, err
	}
	return done, runErr
}

func (w *Workflow) statusLocked() Status {
	if w.req == nil {
		return Idle
	}
	return w.req.Status
}

func (w *Workflow) reset() {
	w.def = nil
	w.req = nil
	w.steps = nil
}
