package cli

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/poll"
	"github.com/roach88/backoffice/internal/session"
	"github.com/roach88/backoffice/internal/view"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	listFlags
	Interval time.Duration
}

// WatchTick is one refresh of a watched page.
type WatchTick struct {
	Page  string         `json:"page"`
	At    time.Time      `json:"at"`
	State view.PageState `json:"state"`
	IDs   []string       `json:"ids"`
}

func (t WatchTick) String() string {
	return fmt.Sprintf("[%s] %s: %d records, page %d of %d",
		t.At.Format("15:04:05"), t.Page, t.State.Total, t.State.Current, t.State.TotalPages())
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <page>",
		Short: "Keep a page and the session fresh until interrupted",
		Long: `Refresh a page periodically while the session is re-verified in the
background. Stops on Ctrl-C, or with exit code 1 when the session is
revoked on the backend.

Example:
  backoffice watch deposits --filter status=Pending --interval 30s`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}
	opts.register(cmd, true)
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "list refresh period (default: session.poll_interval)")

	return cmd
}

func runWatch(opts *WatchOptions, pageName string, cmd *cobra.Command) error {
	a, err := open(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(commandContext(cmd), a.logger)
	defer cancel()

	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	pg, err := a.page(pageName)
	if err != nil {
		return err
	}
	list, err := a.newList(pg, opts.listFlags)
	if err != nil {
		return err
	}

	var lost atomic.Bool
	a.gate.OnChange(func(st session.State, _ *session.Session) {
		if st == session.Unauthenticated {
			lost.Store(true)
			cancel()
		}
	})

	interval := opts.Interval
	if interval <= 0 {
		interval = a.cfg.Session.PollInterval
	}
	a.logger.Info("watching", "page", pg.Name, "interval", interval, "session_interval", a.gate.Interval())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.gate.Run(gctx)
	})
	g.Go(func() error {
		return a.refreshLoop(gctx, pg, list, interval)
	})
	err = g.Wait()

	if lost.Load() {
		return a.out.Fail(ExitFailure, ErrCodeUnauthorized, "session ended; run 'backoffice login'", session.ErrUnauthenticated)
	}
	if err != nil && ctx.Err() == nil {
		return a.out.Fail(ExitFailure, ErrCodeGeneric, "watch stopped", err)
	}
	return nil
}

// refreshLoop re-fetches the list every interval and prints a tick.
// Fetch failures are logged by the repeater and keep the last snapshot.
func (a *app) refreshLoop(ctx context.Context, pg *page.Page, list *view.List, interval time.Duration) error {
	src := a.collection(pg)
	r := poll.New("list:"+pg.Name, interval, func(ctx context.Context) error {
		if err := list.Refresh(ctx, src); err != nil {
			return err
		}
		v := list.View()
		ids := make([]string, len(v.Items))
		for i, rec := range v.Items {
			ids[i] = rec.ID(pg.IDField)
		}
		return a.out.Stream(WatchTick{Page: pg.Name, At: time.Now(), State: v.State, IDs: ids})
	}, a.logger)

	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	r.Stop()
	return nil
}
