// Package agent supplies the concrete runtime.Binding implementations for
// the two external CLI agents spec.md names: claude and codex. Both share
// the same prompt-rendering and invocation shape; only their binary and
// command-line arguments differ.
package agent

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/steveyegge/discussion-agent/internal/config"
	"github.com/steveyegge/discussion-agent/internal/invoker"
	"github.com/steveyegge/discussion-agent/internal/message"
	"github.com/steveyegge/discussion-agent/internal/runtime"
)

// CLI is a runtime.Binding backed by an external AI CLI invoked as a
// child process. The two named agents (claude, codex) are both just CLI
// values with different name/binary/args.
type CLI struct {
	name   string
	binary string
	args   []string
}

// Claude returns the binding for the "claude" agent, using cfg.ClaudeBin.
func Claude(cfg config.Config) *CLI {
	return &CLI{name: "claude", binary: cfg.ClaudeBin, args: []string{"-p"}}
}

// Codex returns the binding for the "codex" agent, using cfg.CodexBin.
func Codex(cfg config.Config) *CLI {
	return &CLI{name: "codex", binary: cfg.CodexBin, args: []string{"exec"}}
}

// Name implements runtime.Binding.
func (c *CLI) Name() string { return c.name }

// BuildPrompt implements runtime.Binding, rendering the transcript and
// turn instructions per spec.md §4.4.4 step 2: identity header
// requirement, topic, participants, and the round this turn belongs to.
func (c *CLI) BuildPrompt(ctx runtime.PromptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are participating in a multi-agent discussion as %s.\n", ctx.SelfName)
	fmt.Fprintf(&b, "Topic: %s\n", ctx.Topic)
	fmt.Fprintf(&b, "Participants: %s\n", strings.Join(ctx.Participants, ", "))
	fmt.Fprintf(&b, "Round: %d\n\n", ctx.Round)

	b.WriteString("Transcript so far:\n")
	for _, m := range ctx.History {
		renderTranscriptLine(&b, m)
	}

	b.WriteString("\nRespond with your turn for this round. Your response MUST begin with a ")
	fmt.Fprintf(&b, "line reading exactly \"AGENT:%s\" followed by your message body. ", ctx.SelfName)
	b.WriteString("State whether you agree, disagree, or propose an alternative, and include a ")
	b.WriteString("confidence percentage for your position.\n")

	return b.String()
}

func renderTranscriptLine(b *strings.Builder, m message.Message) {
	switch m.Type {
	case message.TypeStart:
		fmt.Fprintf(b, "[start] %s\n", m.Topic)
	case message.TypeResponse:
		fmt.Fprintf(b, "[round %d] %s (%s, confidence %s): %s\n",
			m.Round, m.From, m.Opinion, strconv.FormatFloat(m.Confidence, 'f', 2, 64), m.Content)
	case message.TypeFollowup:
		fmt.Fprintf(b, "[followup -> %s] %s: %s\n", m.Target, m.From, m.Content)
	case message.TypeEnd:
		fmt.Fprintf(b, "[end] decision=%s consensus=%v\n", m.Decision, m.Consensus)
	case message.TypeError:
		fmt.Fprintf(b, "[error round %d] %s: %s\n", m.Round, m.From, m.Error)
	case message.TypeStatus:
		// status records are operational noise, not discussion content.
	}
}

// Invoke implements runtime.Binding by shelling out through
// internal/invoker with a scrubbed environment, per spec.md §4.3.
func (c *CLI) Invoke(prompt, workingDir string) runtime.InvokeResult {
	res := invoker.Invoke(prompt, invoker.Options{
		Binary:     c.binary,
		Args:       c.args,
		WorkingDir: workingDir,
		Env:        invoker.ScrubbedEnv(os.LookupEnv),
		Timeout:    invokeTimeout,
	})
	return runtime.InvokeResult{OK: res.OK, Output: res.Output, Error: res.Error}
}

// invokeTimeout is set by SetInvokeTimeout before any binding is invoked; Bindings
// don't carry a config reference beyond binary/args, so the runtime's
// configured timeout is threaded through this package-level default
// instead of a per-call parameter, matching the single-process,
// single-timeout-policy model spec.md §6 describes.
var invokeTimeout = config.Default().InvokeTimeout

// SetInvokeTimeout overrides the timeout used by every CLI binding's
// Invoke call. cmd/agentd calls this once at startup with the loaded
// config's InvokeTimeout.
func SetInvokeTimeout(cfg config.Config) {
	invokeTimeout = cfg.InvokeTimeout
}
