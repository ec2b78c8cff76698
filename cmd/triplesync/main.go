// Command triplesync is a local-first task list replicated as RDF triples.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/triplesync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
