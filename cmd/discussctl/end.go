package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/discussion-agent/internal/discussionlog"
)

var endConsensus bool

var endCmd = &cobra.Command{
	Use:   "end <discussion-id> <decision>",
	Short: "Close out a discussion with a final decision",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		log := discussionlog.Open(baseDir, args[0])
		m, err := log.AppendEnd("user", args[1], endConsensus)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printRecord(m)
	},
}

func init() {
	endCmd.Flags().BoolVar(&endConsensus, "consensus", false, "mark the discussion as having reached consensus")
	rootCmd.AddCommand(endCmd)
}
