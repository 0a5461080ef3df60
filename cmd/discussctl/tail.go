package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/discussion-agent/internal/discussionlog"
	"github.com/steveyegge/discussion-agent/internal/message"
)

var tailFollow bool

var tailCmd = &cobra.Command{
	Use:   "tail <discussion-id>",
	Short: "Show a discussion's records and optionally follow new ones",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		log := discussionlog.Open(baseDir, id)

		msgs, err := log.ReadAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		lastPrinted := 0
		for _, m := range msgs {
			printRecord(m)
			if m.Seq > lastPrinted {
				lastPrinted = m.Seq
			}
		}

		if !tailFollow {
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s following %s (Ctrl+C to stop)...\n", cyan("*"), id)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		stop := log.Watch(1500*time.Millisecond, func(tail []message.Message) {
			for _, m := range tail {
				if m.Seq > lastPrinted {
					printRecord(m)
				}
			}
		})
		<-sigCh
		stop()
		fmt.Println("\nstopped following")
	},
}

func init() {
	tailCmd.Flags().BoolVarP(&tailFollow, "follow", "f", false, "follow new records as they're appended")
	rootCmd.AddCommand(tailCmd)
}

func printRecord(m message.Message) {
	switch m.Type {
	case message.TypeStart:
		fmt.Printf("[%d] start   topic=%q participants=%v\n", m.Seq, m.Topic, m.Participants)
	case message.TypeResponse:
		fmt.Printf("[%d] round %d %-8s %s (%s, %.2f)\n", m.Seq, m.Round, m.From, m.Content, m.Opinion, m.Confidence)
	case message.TypeFollowup:
		fmt.Printf("[%d] followup -> %s: %s\n", m.Seq, m.Target, m.Content)
	case message.TypeEnd:
		fmt.Printf("[%d] end     decision=%q consensus=%v\n", m.Seq, m.Decision, m.Consensus)
	case message.TypeError:
		fmt.Printf("[%d] error   round=%d %s: %s\n", m.Seq, m.Round, m.From, m.Error)
	case message.TypeStatus:
		fmt.Printf("[%d] status  round=%d %s: %s\n", m.Seq, m.Round, m.From, m.Status)
	}
}
