// Command soqlkit compiles relational queries over declared entities to
// SOQL, runs them against a remote object store and inspects the journal
// of what was sent.
//
// Usage:
//
//	soqlkit [--config soqlkit.yaml] [--format json|text] [-v] <command>
//
// Commands:
//   - compile: print the SOQL a query compiles to
//   - validate: check CUE entity declarations
//   - query, aggregate: run a query or an aggregate
//   - create, update: write records, refused in sandbox mode
//   - test: run YAML conformance scenarios
//   - trace: show journaled remote calls
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/soqlkit/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "soqlkit:", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
