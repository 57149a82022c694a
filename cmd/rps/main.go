// Command rps runs stake-backed Rock-Paper-Scissors games against a local
// SQLite database.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rps/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
