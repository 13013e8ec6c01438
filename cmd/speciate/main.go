// Command speciate pregenerates and inspects specialized invocation
// handles.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/speciate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
