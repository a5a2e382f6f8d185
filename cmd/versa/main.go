// Command versa queries versioned content trees as of a release.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ist-dresden/composum-platform-sub002/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands report their own failures; only usage errors from flag and
		// argument parsing still need printing.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
