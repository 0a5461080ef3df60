// Command discussctl is a thin operator debugging shell over discussion
// logs — create/append/status/tail — explicitly NOT the polished
// user-facing product CLI spec.md §1/§13 scopes out.
//
// Grounded on cmd/vc's one-subcommand-per-file cobra wiring
// (pause.go/tail.go/status.go) and internal/repl's readline+color
// interactive loop for the `discussctl shell` subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var baseDir string

var rootCmd = &cobra.Command{
	Use:   "discussctl",
	Short: "Operator debugging shell for discussion logs",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", "./discussions", "directory containing discussion .jsonl logs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
