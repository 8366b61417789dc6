// Command backoffice is the admin back-office console.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/backoffice/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			// Cobra usage errors (bad flags, wrong arg count).
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(cli.ExitCommandError)
		}
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
