// Command pgpi manages a query-progress-estimation repository and
// reports live progress for running PostgreSQL queries (spec §6).
package main

import (
	"fmt"
	"os"

	"github.com/database-intelligence-mvp/pgplaninspector/cmd/pgpi/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
