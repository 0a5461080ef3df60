package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/discussion-agent/internal/discussionlog"
)

var createParticipants string

var createCmd = &cobra.Command{
	Use:   "create <topic>",
	Short: "Start a new discussion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		participants := strings.Split(createParticipants, ",")
		for i := range participants {
			participants[i] = strings.TrimSpace(participants[i])
		}

		log, start, err := discussionlog.Create(baseDir, args[0], participants, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s created discussion %s\n", green("+"), log.ID())
		printRecord(start)
	},
}

func init() {
	createCmd.Flags().StringVarP(&createParticipants, "participants", "p", "claude,codex", "comma-separated participant names")
	rootCmd.AddCommand(createCmd)
}
