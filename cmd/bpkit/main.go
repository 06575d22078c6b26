// Command bpkit decomposes pitch decks into constitutions and keeps the two
// in sync.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/bpkit/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
