// Command peephole runs the post-legalization combiner over IR text files.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/peephole/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
