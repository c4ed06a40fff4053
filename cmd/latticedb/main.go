// Command latticedb is the operator-facing entrypoint: a cobra root command
// wiring the server bootstrap and the standalone WAL tools into one binary,
// the way the teacher's cli/main.go wires one cobra root over its own
// lex/parse/plan/execute pipeline. Flag parsing here is real; no transport
// or network listener is started (out of scope, spec.md §1).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "latticedb",
		Short:         "Operate a lattice graph database instance",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newServerCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newReadWALCmd())
	root.AddCommand(newReplayWALCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
