package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/discussion-agent/internal/discussionlog"
)

var lockCmd = &cobra.Command{
	Use:   "lock <discussion-id>",
	Short: "Diagnose the cross-process lock for a discussion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		log := discussionlog.Open(baseDir, args[0])
		info, err := discussionlog.Diagnose(log.LockPath())
		if err != nil {
			if os.IsNotExist(err) {
				green := color.New(color.FgGreen).SprintFunc()
				fmt.Printf("%s no lock held on %s\n", green("+"), args[0])
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		state := yellow("held")
		if info.Stale {
			state = red("stale")
		} else if !info.Alive {
			state = red("orphaned (holder process gone)")
		}

		fmt.Printf("lock on %s: %s\n", args[0], state)
		fmt.Printf("  pid:          %d\n", info.PID)
		fmt.Printf("  acquired_at:  %d (ms since epoch)\n", info.AcquiredAtMillis)
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
}
