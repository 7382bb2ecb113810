// Command filibuster runs the fault-injection coordinator and inspects
// archived explorations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/filibuster/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
