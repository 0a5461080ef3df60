package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/discussion-agent/internal/discussionindex"
	"github.com/steveyegge/discussion-agent/internal/discussionlog"
)

// indexFileName matches internal/runtime's cache filename, so discussctl
// reads the same index a running agentd process maintains via its scan
// loop instead of keeping its own separate copy.
const indexFileName = ".discussionindex.db"

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discussions under base-dir",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		idx, err := discussionindex.Open(filepath.Join(baseDir, indexFileName))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer idx.Close()

		if err := idx.Rebuild(ctx, baseDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		summaries, err := idx.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(summaries) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s no discussions found under %s\n", yellow("!"), baseDir)
			return
		}

		for _, s := range summaries {
			printSummaryLine(s)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func printStatusLine(id string, status discussionlog.Status) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	state := green("active")
	if !status.Active {
		state = red("ended")
	}

	fmt.Printf("%s  round=%d  %s  participants=[%s]  %s\n",
		id, status.CurrentRound, state, strings.Join(status.Participants, ", "), status.Topic)
}

// printSummaryLine renders one discussionindex row, additionally showing
// whether agentd's scan currently watches this discussion (and at what
// priority rank) — information discussionlog.Status alone can't answer
// since watching is the runtime's own scheduling state, not the log's.
func printSummaryLine(s discussionindex.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	state := green("active")
	if !s.Active {
		state = red("ended")
	}

	watched := gray("unwatched")
	if s.Watched {
		watched = cyan(fmt.Sprintf("watched (priority %.0f)", s.PriorityHint))
	}

	fmt.Printf("%s  round=%d  %s  %s  participants=[%s]  %s\n",
		s.ID, s.CurrentRound, state, watched, strings.Join(s.Participants, ", "), s.Topic)
}
