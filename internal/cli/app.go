package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/backoffice/internal/backoffice"
	"github.com/roach88/backoffice/internal/compiler"
	"github.com/roach88/backoffice/internal/config"
	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/remote"
	"github.com/roach88/backoffice/internal/session"
	"github.com/roach88/backoffice/internal/store"
)

// app is everything a command needs, opened from the config.
type app struct {
	cfg       *config.Config
	out       *OutputFormatter
	logger    *slog.Logger
	registry  *backoffice.Registry
	catalogue *page.Catalogue

	// Set by open only.
	http   *http.Client
	client *remote.Client
	store  *store.Store
	gate   *session.Gate
}

// openLocal loads the config and the page catalogue without touching the
// backend or the state file.
func openLocal(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	out := opts.formatter(cmd)
	cfg, err := config.Read(opts.ConfigPath, opts.getenv)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if errs := cfg.Validate().Without("api.base_url"); len(errs) > 0 {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "invalid config", errs)
	}
	return newApp(cfg, out)
}

// open loads everything: config, catalogue, API client, state store and
// session gate. The gate is not checked yet; see requireSession.
func open(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	out := opts.formatter(cmd)
	cfg, err := config.Load(opts.ConfigPath, opts.getenv)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	a, err := newApp(cfg, out)
	if err != nil {
		return nil, err
	}

	a.http = remote.NewHTTPClient(cfg.API.Timeout, cfg.API.Tracing)
	a.client, err = remote.New(cfg.API.BaseURL, remote.WithHTTPClient(a.http), remote.WithLogger(a.logger))
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "invalid API base URL", err)
	}

	a.logger.Debug("opening state", "path", cfg.State.Path)
	a.store, err = store.Open(cfg.State.Path)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to open state", err)
	}

	gateOpts := []session.GateOption{
		session.WithInterval(cfg.Session.PollInterval),
		session.WithLogger(a.logger),
	}
	if dc := cfg.Session.DomainCheck; dc.URL != "" {
		gateOpts = append(gateOpts, session.WithDomainAuthorizer(&session.DomainCheck{
			URL:    dc.URL,
			Domain: dc.Domain,
			Client: a.http,
		}))
	}
	identities := a.client.Collection(cfg.Session.IdentityResource, "email")
	a.gate = session.NewGate(a.store, identities, gateOpts...)
	return a, nil
}

func newApp(cfg *config.Config, out *OutputFormatter) (*app, error) {
	registry := backoffice.DefaultRegistry()
	catalogue, err := compiler.Load(cfg.Pages.Dir, registry)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeCatalogue, "failed to load pages", err)
	}
	return &app{
		cfg:       cfg,
		out:       out,
		logger:    slog.Default(),
		registry:  registry,
		catalogue: catalogue,
	}, nil
}

// Close releases the state store.
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing state", "error", err)
	}
}

// requireSession verifies the stored key against the backend and refuses
// to go on without an authenticated operator.
func (a *app) requireSession(ctx context.Context) (*session.Session, error) {
	st := a.gate.Check(ctx)
	a.logger.Debug("session checked", "state", st.String())
	s, err := a.gate.Require()
	if err != nil {
		return nil, a.out.Fail(ExitFailure, ErrCodeUnauthorized, "not signed in; run 'backoffice login'", err)
	}
	return s, nil
}

// env is the handler environment for the signed-in operator.
func (a *app) env(s *session.Session) backoffice.Env {
	operator := s.Identity.Name
	if operator == "" {
		operator = s.Identity.Email
	}
	return backoffice.Env{Client: a.client, Operator: operator, Now: time.Now}
}

// page resolves a page name, reporting unknown names.
func (a *app) page(name string) (*page.Page, error) {
	pg, err := a.catalogue.Get(name)
	if err != nil {
		return nil, a.out.Fail(ExitCommandError, ErrCodeNotFound, "unknown page", err)
	}
	return pg, nil
}

// fetchFailure maps a backend error to an exit error.
func (a *app) fetchFailure(message string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if status := remote.StatusOf(err); status == http.StatusNotFound {
		return a.out.Fail(ExitFailure, ErrCodeNotFound, message, err)
	}
	return a.out.Fail(ExitFailure, ErrCodeFetchFailed, message, err)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// describe is the one-line text form of a record for messages.
func describe(pg *page.Page, id string) string {
	if id == "" {
		return pg.Name
	}
	return fmt.Sprintf("%s %s", pg.Name, id)
}
