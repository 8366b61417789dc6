package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/backoffice/internal/action"
	"github.com/roach88/backoffice/internal/backoffice"
)

// tasksPage is the catalogue page that lists the products a combination
// picks from.
const tasksPage = "tasks"

// CombineOptions holds flags for the combine command.
type CombineOptions struct {
	*RootOptions
	Target string
	Tasks  []string
	Yes    bool
}

// NewCombineCommand creates the combine command.
func NewCombineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CombineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "combine <member>",
		Short: "Assign a combination task to a member",
		Long: `Build a combination task from selected products and assign it to a member.

The member is looked up by email, phone or username. Products are picked by
product id in the given order; the running totals of the first ten prices
become the combination's amount sums.

Example:
  backoffice combine ana@example.com --target 5 --task p-12 --task p-40 --yes`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCombine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Target, "target", "t", "", "task number at which the combination triggers")
	cmd.Flags().StringSliceVar(&opts.Tasks, "task", nil, "product id to include (repeatable, order kept)")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "assign without prompting")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("task")

	return cmd
}

func runCombine(opts *CombineOptions, member string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := open(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	pg, err := a.page(tasksPage)
	if err != nil {
		return err
	}

	user, err := a.client.Collection(backoffice.MemberResource, "_id").Get(ctx, member)
	if err != nil {
		return a.fetchFailure(fmt.Sprintf("failed to fetch member %s", member), err)
	}
	tasks, err := a.collection(pg).List(ctx)
	if err != nil {
		return a.fetchFailure("failed to fetch tasks", err)
	}

	c, err := backoffice.BuildCombination(user, tasks, opts.Tasks, opts.Target)
	if err != nil {
		if action.IsValidation(err) {
			return a.out.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid combination", err)
		}
		return a.out.Fail(ExitFailure, ErrCodeGeneric, "invalid combination", err)
	}

	if !opts.Yes && !confirmCombination(cmd, c) {
		if a.out.JSON() {
			return a.out.Success(map[string]string{"status": "cancelled"})
		}
		fmt.Fprintln(a.out.Writer, "Cancelled; nothing was sent.")
		return nil
	}

	if err := backoffice.SubmitCombination(ctx, a.client, c); err != nil {
		return a.fetchFailure("failed to assign combination", err)
	}
	a.logger.Info("combination assigned", "email", c.Email, "target_task", c.TargetTask, "task_size", c.TaskSize)

	if a.out.JSON() {
		return a.out.Success(c)
	}
	fmt.Fprintf(a.out.Writer, "✓ Combination assigned to %s: %d task(s) at task %d\n", c.Username, c.TaskSize, c.TargetTask)
	fmt.Fprintf(a.out.Writer, "  amount sums: %s\n", joinNumbers(c))
	return nil
}

func confirmCombination(cmd *cobra.Command, c *backoffice.Combination) bool {
	def := &action.Definition{Dialog: action.Dialog{
		Title:   "Assign this combination?",
		Body:    fmt.Sprintf("%d task(s), triggering at task %d, sums %s.", c.TaskSize, c.TargetTask, joinNumbers(c)),
		Confirm: "Yes",
	}}
	req := &action.Request{Page: "member", RecordID: c.Email}
	return prompt(cmd.ErrOrStderr(), cmd.InOrStdin(), def, req)
}

func joinNumbers(c *backoffice.Combination) string {
	parts := make([]string, len(c.AmountSums))
	for i, n := range c.AmountSums {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}
