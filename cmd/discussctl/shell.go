package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/discussion-agent/internal/discussionlog"
)

// shell is a thin interactive wrapper over the same subcommands this binary
// exposes on the command line, for an operator debugging a live discussion
// without retyping --base-dir and the discussion id on every invocation.
var shellCmd = &cobra.Command{
	Use:   "shell <discussion-id>",
	Short: "Interactive status/tail/append shell for one discussion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(args[0])
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(id string) error {
	log := discussionlog.Open(baseDir, id)

	prompt := color.New(color.FgCyan).Sprintf("%s> ", id)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       "",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("status"),
			readline.PcItem("tail"),
			readline.PcItem("followup"),
			readline.PcItem("end"),
			readline.PcItem("lock"),
			readline.PcItem("/quit"),
			readline.PcItem("/help"),
		),
	})
	if err != nil {
		return fmt.Errorf("shell: open readline: %w", err)
	}
	defer rl.Close()

	printShellHelp()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if line == "/help" {
			printShellHelp()
			continue
		}

		if err := dispatchShellLine(log, id, line); err != nil {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("error:"), err)
		}
	}
}

func dispatchShellLine(log *discussionlog.Log, id, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "status":
		status, err := log.Status()
		if err != nil {
			return err
		}
		printStatusLine(id, status)
		return nil

	case "tail":
		msgs, err := log.ReadAll()
		if err != nil {
			return err
		}
		for _, m := range msgs {
			printRecord(m)
		}
		return nil

	case "followup":
		if len(fields) < 2 {
			return fmt.Errorf("usage: followup <content...>")
		}
		m, err := log.AppendFollowup("user", strings.Join(fields[1:], " "), "", 0)
		if err != nil {
			return err
		}
		printRecord(m)
		return nil

	case "end":
		if len(fields) < 2 {
			return fmt.Errorf("usage: end <decision...>")
		}
		m, err := log.AppendEnd("user", strings.Join(fields[1:], " "), false)
		if err != nil {
			return err
		}
		printRecord(m)
		return nil

	case "lock":
		info, err := discussionlog.Diagnose(log.LockPath())
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("no lock held")
				return nil
			}
			return err
		}
		fmt.Printf("pid=%d acquired_at=%d stale=%v alive=%v\n", info.PID, info.AcquiredAtMillis, info.Stale, info.Alive)
		return nil

	default:
		return fmt.Errorf("unknown command %q (try /help)", fields[0])
	}
}

func printShellHelp() {
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Println(gray("commands: status | tail | followup <text> | end <decision> | lock | /quit"))
}
