// Command tg is turbogrep's CLI: semantic and regex code search backed
// by a remote turbopuffer index, kept in sync with the local tree.
package main

import (
	"fmt"
	"os"

	"github.com/turbopuffer/turbogrep/cmd/tg/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
