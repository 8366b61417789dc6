package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/backoffice/internal/mockapi"
)

// shutdownTimeout bounds the graceful stop of the mock backend.
const shutdownTimeout = 5 * time.Second

// MockServerOptions holds flags for the mock-server command.
type MockServerOptions struct {
	*RootOptions
	Addr string
	Seed string
}

// NewMockServerCommand creates the mock-server command.
func NewMockServerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MockServerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory REST backend for local use",
		Long: `Serve an in-memory stand-in for the back-office REST backend.

Every catalogue page's resource is served with the page's id field.
Records are matched by id, email, phone or username, the same way the
real backend resolves member keys. State is lost on exit.

The seed file is a JSON object of resource name to record array:
  {"user-list": [{"_id": "u1", "email": "ana@example.com", "totalBal": 120}]}

Example:
  backoffice mock-server --addr 127.0.0.1:8080 --seed testdata/seed.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMockServer(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "JSON file with initial records")

	return cmd
}

func runMockServer(opts *MockServerOptions, cmd *cobra.Command) error {
	a, err := openLocal(cmd, opts.RootOptions)
	if err != nil {
		return err
	}

	if opts.Verbose {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	serverOpts := []mockapi.Option{mockapi.WithLogger(a.logger)}
	for _, pg := range a.catalogue.All() {
		serverOpts = append(serverOpts, mockapi.WithIDField(pg.Resource, pg.IDField))
	}
	srv := mockapi.New(serverOpts...)

	if opts.Seed != "" {
		f, err := os.Open(opts.Seed)
		if err != nil {
			return a.out.Fail(ExitCommandError, ErrCodeNotFound, "failed to open seed", err)
		}
		err = srv.LoadSeed(f)
		f.Close()
		if err != nil {
			return a.out.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid seed", err)
		}
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeGeneric, "failed to listen", err)
	}

	ctx, cancel := signalContext(commandContext(cmd), a.logger)
	defer cancel()

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	a.logger.Info("mock backend listening", "addr", ln.Addr().String())
	if a.out.JSON() {
		_ = a.out.Stream(map[string]string{"url": "http://" + ln.Addr().String()})
	} else {
		fmt.Fprintf(a.out.Writer, "Mock backend listening on http://%s\n", ln.Addr())
		fmt.Fprintln(a.out.Writer, "Press Ctrl-C to stop.")
	}

	select {
	case err := <-errCh:
		return a.out.Fail(ExitFailure, ErrCodeGeneric, "mock backend stopped", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return a.out.Fail(ExitFailure, ErrCodeGeneric, "shutdown failed", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return a.out.Fail(ExitFailure, ErrCodeGeneric, "mock backend stopped", err)
	}
	a.logger.Info("mock backend stopped", "calls", len(srv.Calls()))
	return nil
}
