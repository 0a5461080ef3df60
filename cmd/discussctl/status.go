package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/discussion-agent/internal/discussionlog"
)

var statusCmd = &cobra.Command{
	Use:   "status <discussion-id>",
	Short: "Show the derived status of one discussion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := discussionlog.Open(baseDir, args[0])
		status, err := log.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printStatusLine(args[0], status)
		fmt.Printf("  started: %s\n", status.StartedAt)
		if status.EndedAt != "" {
			fmt.Printf("  ended:   %s\n", status.EndedAt)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
