package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/backoffice/internal/backoffice"
	"github.com/roach88/backoffice/internal/session"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Email    string
	Phone    string
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Long: `Sign in with an admin email or a member phone number.

Email sign-in matches the accounts listed in the config file. Phone sign-in
matches the member list on the backend. Either way the key is verified
against the identity resource before it is stored.

Example:
  backoffice login --email root@example.com --password s3cret
  echo s3cret | backoffice login --phone 0812345678`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "member phone number")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (read from stdin when omitted)")
	cmd.MarkFlagsMutuallyExclusive("email", "phone")
	cmd.MarkFlagsOneRequired("email", "phone")

	return cmd
}

func runLogin(opts *LoginOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	a, err := open(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	method, credential := backoffice.MethodEmail, opts.Email
	if opts.Phone != "" {
		method, credential = backoffice.MethodPhone, opts.Phone
	}

	password := opts.Password
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		password, err = readLine(cmd.InOrStdin())
		if err != nil {
			return a.out.Fail(ExitCommandError, ErrCodeInvalidInput, "failed to read password", err)
		}
	}

	auth := &backoffice.Authenticator{
		Accounts: a.cfg.Accounts,
		Members:  a.client.Collection(backoffice.MemberResource, "_id"),
		Gate:     a.gate,
		Logger:   a.logger,
	}
	s, err := auth.Login(ctx, method, credential, password)
	switch {
	case errors.Is(err, backoffice.ErrBadCredentials), errors.Is(err, session.ErrUnauthenticated):
		return a.out.Fail(ExitFailure, ErrCodeUnauthorized, "sign-in failed", err)
	case err != nil:
		return a.fetchFailure("sign-in failed", err)
	}

	if a.out.JSON() {
		return a.out.Success(s)
	}
	fmt.Fprintf(a.out.Writer, "✓ Signed in as %s (%s)\n", displayName(s.Identity), roleOf(s.Identity))
	return nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Forget the stored session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.gate.SignOut(commandContext(cmd)); err != nil {
				return a.out.Fail(ExitFailure, ErrCodeWriteFailed, "sign-out failed", err)
			}
			if a.out.JSON() {
				return a.out.Success(map[string]string{"state": session.Unauthenticated.String()})
			}
			fmt.Fprintln(a.out.Writer, "✓ Signed out")
			return nil
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "whoami",
		Short:         "Show the verified operator",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.requireSession(commandContext(cmd))
			if err != nil {
				return err
			}
			if a.out.JSON() {
				return a.out.Success(s)
			}
			w := a.out.Writer
			fmt.Fprintf(w, "Name:     %s\n", displayName(s.Identity))
			fmt.Fprintf(w, "Email:    %s\n", s.Identity.Email)
			fmt.Fprintf(w, "Role:     %s\n", roleOf(s.Identity))
			fmt.Fprintf(w, "Verified: %s\n", s.LastVerifiedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func displayName(id session.Identity) string {
	if id.Name != "" {
		return id.Name
	}
	return id.Email
}

func roleOf(id session.Identity) string {
	if id.Role == "" {
		return "no role"
	}
	return id.Role
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
