package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/backoffice/internal/action"
	"github.com/roach88/backoffice/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Page    string
	Partial bool
	Limit   int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the action journal",
		Long: `Show finished row actions from the local journal, oldest first.

With --partial only compound actions that failed after an earlier step
was applied are shown. Those records need a manual check on the backend.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Page, "page", "", "only actions on this page")
	cmd.Flags().BoolVar(&opts.Partial, "partial", false, "only partial failures")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show the most recent n entries (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := open(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	entries, err := a.store.ListActions(ctx, store.ActionQuery{
		Page:        opts.Page,
		PartialOnly: opts.Partial,
		Limit:       opts.Limit,
	})
	if err != nil {
		return a.out.Fail(ExitFailure, ErrCodeGeneric, "failed to read journal", err)
	}

	if a.out.JSON() {
		if entries == nil {
			entries = []action.Entry{}
		}
		return a.out.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out.Writer, "No actions recorded")
		return nil
	}
	return writeHistory(a.out, entries)
}

func writeHistory(out *OutputFormatter, entries []action.Entry) error {
	tw := tabwriter.NewWriter(out.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tPAGE\tACTION\tRECORD\tSTATUS\tNOTE")
	for _, e := range entries {
		note := "-"
		switch {
		case e.Partial:
			note = "PARTIAL: failed at " + e.FailedStep
		case e.FailedStep != "":
			note = "failed at " + e.FailedStep
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.At.UTC().Format("2006-01-02 15:04:05"), e.Page, e.Action, e.RecordID, e.Status, note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, e := range entries {
		if e.Error != "" {
			out.VerboseLog("%s: %s", e.RequestID, e.Error)
		}
	}
	return nil
}
