// Command agentd runs one agent runtime process (claude or codex) against
// a directory of discussion logs, per spec.md §1/§6: the daemon half of
// the system, with no user-facing discussion-management surface.
//
// Grounded on the teacher's cmd/run-executor/main.go shutdown sequence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/discussion-agent/internal/agent"
	"github.com/steveyegge/discussion-agent/internal/agentlog"
	"github.com/steveyegge/discussion-agent/internal/config"
	"github.com/steveyegge/discussion-agent/internal/runtime"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	agentName  string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "Run a discussion agent runtime (claude or codex)",
	RunE:  runAgentd,
}

func init() {
	rootCmd.Flags().StringVar(&agentName, "agent", "claude", "which agent to run: claude or codex")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func runAgentd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("agentd: load config: %w", err)
	}

	agentlog.SetVerbose(verbose)
	agent.SetInvokeTimeout(cfg)

	var binding runtime.Binding
	switch agentName {
	case "claude":
		binding = agent.Claude(cfg)
	case "codex":
		binding = agent.Codex(cfg)
	default:
		return fmt.Errorf("agentd: unknown agent %q (want claude or codex)", agentName)
	}

	rt := runtime.New(binding, cfg.BaseDir, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("agentd: start runtime: %w", err)
	}

	agentlog.Info("agentd: %s watching %s (poll=%s, scan=%s, cleanup=%s)",
		binding.Name(), cfg.BaseDir, cfg.PollInterval, cfg.ScanInterval, cfg.CleanupInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	agentlog.Info("agentd: shutting down %s...", binding.Name())
	cancel()
	rt.Stop()
	agentlog.Info("agentd: %s stopped", binding.Name())

	return nil
}
