package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/discussion-agent/internal/discussionlog"
)

var followupTarget string

var followupCmd = &cobra.Command{
	Use:   "followup <discussion-id> <content>",
	Short: "Append a follow-up question to a discussion",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		log := discussionlog.Open(baseDir, args[0])
		m, err := log.AppendFollowup("user", args[1], followupTarget, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printRecord(m)
	},
}

func init() {
	followupCmd.Flags().StringVarP(&followupTarget, "target", "t", "", "participant this follow-up targets (empty = all)")
	rootCmd.AddCommand(followupCmd)
}
