package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/backoffice/internal/poll"
	"github.com/roach88/backoffice/internal/record"
)

// DefaultInterval is how often the identity is re-checked.
const DefaultInterval = 60 * time.Second

var (
	// ErrUnauthenticated is returned by Require when nobody is signed in.
	ErrUnauthenticated = errors.New("not signed in")

	// ErrUnresolved is returned by Require before the first check finished.
	ErrUnresolved = errors.New("session not resolved yet")
)

// KeyStore persists the "who is logged in" key across runs.
type KeyStore interface {
	LoadKey(ctx context.Context) (string, error)
	SaveKey(ctx context.Context, key string) error
	ClearKey(ctx context.Context) error
}

// IdentitySource resolves a key to a user record.
// *remote.Collection satisfies it.
type IdentitySource interface {
	Get(ctx context.Context, key string) (record.Record, error)
}

// DomainAuthorizer is an optional external check that the deployment is
// still authorized. A non-nil error signs the operator out.
type DomainAuthorizer interface {
	Authorize(ctx context.Context) error
}

// Gate holds the session and keeps it fresh.
//
// Thread-safety: all methods are safe for concurrent use.
type Gate struct {
	keys     KeyStore
	source   IdentitySource
	domain   DomainAuthorizer
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	session   *Session
	listeners []func(State, *Session)
	repeater  *poll.Repeater
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithInterval sets the re-check period.
func WithInterval(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithDomainAuthorizer adds the external domain check.
func WithDomainAuthorizer(d DomainAuthorizer) GateOption {
	return func(g *Gate) { g.domain = d }
}

// WithNow overrides the wall clock.
func WithNow(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// NewGate creates an Unresolved gate.
func NewGate(keys KeyStore, source IdentitySource, opts ...GateOption) *Gate {
	g := &Gate{
		keys:     keys,
		source:   source,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   slog.Default(),
		state:    Unresolved,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Interval returns the re-check period.
func (g *Gate) Interval() time.Duration {
	return g.interval
}

// State returns the current state and a copy of the session, if any.
func (g *Gate) State() (State, *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.sessionCopy()
}

// Require returns the session or the reason there is none.
func (g *Gate) Require() (*Session, error) {
	st, s := g.State()
	switch st {
	case Authenticated:
		return s, nil
	case Unresolved:
		return nil, ErrUnresolved
	default:
		return nil, ErrUnauthenticated
	}
}

// OnChange registers fn to be called after every state change.
func (g *Gate) OnChange(fn func(State, *Session)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// Check re-validates the persisted key once and returns the new state.
// A cancelled ctx leaves the state as it was.
func (g *Gate) Check(ctx context.Context) State {
	id, err := g.verify(ctx)
	if ctx.Err() != nil {
		st, _ := g.State()
		return st
	}
	switch {
	case err == nil:
		g.set(Authenticated, &Session{Identity: id, LastVerifiedAt: g.now().UTC()})
		return Authenticated
	case errors.Is(err, errNoKey):
		g.set(Unauthenticated, nil)
		return Unauthenticated
	default:
		g.logger.Info("session invalidated", "error", err)
		g.forceSignOut(ctx)
		return Unauthenticated
	}
}

var errNoKey = errors.New("no stored key")

func (g *Gate) verify(ctx context.Context) (Identity, error) {
	key, err := g.keys.LoadKey(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("load key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Identity{}, errNoKey
	}

	rec, err := g.source.Get(ctx, key)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch identity: %w", err)
	}
	id, err := IdentityFromRecord(key, rec)
	if err != nil {
		return Identity{}, err
	}
	if g.domain != nil {
		if err := g.domain.Authorize(ctx); err != nil {
			return Identity{}, fmt.Errorf("domain authorization: %w", err)
		}
	}
	return id, nil
}

// SignIn persists key and verifies it immediately.
func (g *Gate) SignIn(ctx context.Context, key string) (*Session, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("sign in: empty key")
	}
	if err := g.keys.SaveKey(ctx, key); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if g.Check(ctx) != Authenticated {
		return nil, fmt.Errorf("sign in %s: %w", key, ErrUnauthenticated)
	}
	return g.Require()
}

// SignOut clears the persisted key and the in-memory identity.
func (g *Gate) SignOut(ctx context.Context) error {
	err := g.keys.ClearKey(ctx)
	g.set(Unauthenticated, nil)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (g *Gate) forceSignOut(ctx context.Context) {
	if err := g.keys.ClearKey(context.WithoutCancel(ctx)); err != nil {
		g.logger.Error("clear session key failed", "error", err)
	}
	g.set(Unauthenticated, nil)
}

// Start runs the first check and then re-checks every interval until ctx
// is cancelled or Stop is called.
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.repeater == nil {
		g.repeater = poll.New("session", g.interval, func(ctx context.Context) error {
			g.Check(ctx)
			return nil
		}, g.logger)
	}
	r := g.repeater
	g.mu.Unlock()
	return r.Start(ctx)
}

// Stop ends periodic checking.
func (g *Gate) Stop() {
	g.mu.Lock()
	r := g.repeater
	g.mu.Unlock()
	if r != nil {
		r.Stop()
	}
}

// Run checks periodically until ctx is cancelled.
func (g *Gate) Run(ctx context.Context) error {
	if err := g.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	g.Stop()
	return nil
}

func (g *Gate) set(st State, s *Session) {
	g.mu.Lock()
	changed := g.state != st || !sameIdentity(g.session, s)
	g.state = st
	g.session = s
	listeners := append([]func(State, *Session)(nil), g.listeners...)
	snapshot := g.sessionCopy()
	g.mu.Unlock()

	if !changed {
		return
	}
	g.logger.Debug("session state changed", "state", st.String())
	for _, fn := range listeners {
		fn(st, snapshot)
	}
}

func (g *Gate) sessionCopy() *Session {
	if g.session == nil {
		return nil
	}
	c := *g.session
	return &c
}

func sameIdentity(a, b *Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Identity == b.Identity
}
