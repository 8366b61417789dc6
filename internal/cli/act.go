package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/backoffice/internal/action"
	"github.com/roach88/backoffice/internal/record"
	"github.com/roach88/backoffice/internal/view"
)

// ActOptions holds flags for the act command.
type ActOptions struct {
	*RootOptions
	Yes    bool
	Params []string
}

// ActResult is the JSON form of a finished request.
type ActResult struct {
	Request *action.Request `json:"request"`
	Status  string          `json:"status"`
	Record  record.Record   `json:"record,omitempty"`
}

// NewActCommand creates the act command.
func NewActCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "act <page> <action> [id]",
		Short: "Run a row or page action after confirmation",
		Long: `Run one row action on one record, or one page action such as adding a
record.

For a row action the record is fetched first; records outside the page or
already in a terminal status are refused. A page action takes no id; its
fields come from --param. The confirmation dialog is shown on the terminal
unless --yes is given. Nothing is sent to the backend before confirmation.

A compound action (for example deposits/approve, which updates the deposit
and then the member balance) can fail after its first change was accepted.
Such partial failures are reported with exit code 1 and kept in the
journal; see 'backoffice history --partial'.

Example:
  backoffice act deposits approve 65f1c0a2
  backoffice act members adjust-balance ana@example.com --param amount=50 --param type=Addbalance --yes
  backoffice act promo_codes add --param code=SPRING --param amount=25`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 3 {
				id = args[2]
			}
			return runAct(opts, args[0], args[1], id, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm without prompting")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "action parameter key=value (repeatable)")

	return cmd
}

func runAct(opts *ActOptions, pageName, actionName, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := open(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	pg, err := a.page(pageName)
	if err != nil {
		return err
	}
	params, err := parseParams(opts.Params)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid --param", err)
	}
	def, err := a.registry.Definition(a.env(s), pg, actionName)
	if err != nil {
		return a.out.Fail(ExitCommandError, ErrCodeNotFound, "unknown action", err)
	}
	pa, _ := pg.Action(actionName)

	var (
		list  *view.List
		rec   record.Record
		cache action.Cache
	)
	switch {
	case pa.OnPage() && id != "":
		return a.out.Fail(ExitCommandError, ErrCodeInvalidInput,
			fmt.Sprintf("%s on %s takes no record id", pa.Name, pg.Name), nil)
	case !pa.OnPage() && id == "":
		return a.out.Fail(ExitCommandError, ErrCodeInvalidInput,
			fmt.Sprintf("%s on %s needs a record id", pa.Name, pg.Name), nil)
	case !pa.OnPage():
		if list, err = a.loadList(ctx, pg, listFlags{}); err != nil {
			return err
		}
		var ok bool
		if rec, ok = list.Find(id); !ok {
			return a.out.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no record %s", describe(pg, id)), nil)
		}
		cache = list
	}

	wfOpts := []action.Option{
		action.WithJournal(a.store),
		action.WithLogger(a.logger),
		action.WithNotifier(action.NotifierFunc(func(n action.Notification) {
			a.out.VerboseLog("[%s] %s", n.Level, n.Message)
		})),
	}
	if opts.IDGenerator != nil {
		wfOpts = append(wfOpts, action.WithIDGenerator(opts.IDGenerator))
	}
	wf := action.NewWorkflow(pg.Name, cache, wfOpts...)

	confirm := func(req *action.Request) bool {
		if opts.Yes {
			return true
		}
		return prompt(cmd.ErrOrStderr(), cmd.InOrStdin(), def, req)
	}
	req, err := wf.Run(ctx, def, rec, id, params, confirm)
	if err != nil {
		return a.actionFailure(describe(pg, id), def, req, err)
	}

	if req.Status == action.Idle {
		if a.out.JSON() {
			return a.out.Success(ActResult{Request: req, Status: "cancelled"})
		}
		fmt.Fprintln(a.out.Writer, "Cancelled; nothing was sent.")
		return nil
	}

	after := record.Record(req.Delta)
	if list != nil {
		after, _ = list.Find(id)
	}
	if a.out.JSON() {
		return a.out.Success(ActResult{Request: req, Status: req.Status.String(), Record: after})
	}
	fmt.Fprintf(a.out.Writer, "✓ %s: %s %s (request %s)\n", def.Label, pg.Name, req.RecordID, req.ID)
	if def.RemovesRecord {
		fmt.Fprintln(a.out.Writer, "  record removed")
	}
	for _, field := range slices.Sorted(maps.Keys(req.Delta)) {
		fmt.Fprintf(a.out.Writer, "  %s = %s\n", field, cellText(after, field))
	}
	return nil
}

func (a *app) actionFailure(target string, def *action.Definition, req *action.Request, err error) error {
	var pf *action.PartialFailure
	switch {
	case errors.As(err, &pf):
		return a.out.Fail(ExitFailure, ErrCodePartial,
			fmt.Sprintf("%s on %s partially applied: %s succeeded, %s failed; check the backend before retrying",
				def.Label, target, strings.Join(pf.Completed, ", "), pf.Failed), err)
	case action.IsValidation(err):
		return a.out.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("%s rejected", def.Label), err)
	case errors.Is(err, action.ErrNotActionable):
		return a.out.Fail(ExitFailure, ErrCodeActionFailed,
			fmt.Sprintf("%s is not available for %s", def.Label, target), err)
	default:
		message := fmt.Sprintf("%s on %s failed", def.Label, target)
		if req != nil && req.FailedStep != "" {
			message += " at " + req.FailedStep
		}
		return a.out.Fail(ExitFailure, ErrCodeActionFailed, message, err)
	}
}

// prompt shows the confirmation dialog and reads y/N.
func prompt(w io.Writer, r io.Reader, def *action.Definition, req *action.Request) bool {
	d := def.Dialog
	fmt.Fprintln(w, d.Title)
	if d.Body != "" {
		fmt.Fprintln(w, d.Body)
	}
	target := req.Page
	if req.RecordID != "" {
		target += " " + req.RecordID
	}
	fmt.Fprintf(w, "%s? [y/N] ", target)

	answer, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch {
	case answer == "":
		return false
	case answer == "y", answer == "yes":
		return true
	default:
		return answer == strings.ToLower(strings.TrimSpace(d.Confirm))
	}
}

// parseParams reads key=value pairs; a repeated key keeps the last value.
func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%q: expected key=value", p)
		}
		params[k] = v
	}
	return params, nil
}
