package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/discussion-agent/internal/config"
	"github.com/steveyegge/discussion-agent/internal/message"
	"github.com/steveyegge/discussion-agent/internal/runtime"
)

func TestClaudeAndCodexHaveDistinctNamesAndBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.ClaudeBin = "claude"
	cfg.CodexBin = "codex"

	claude := Claude(cfg)
	codex := Codex(cfg)

	assert.Equal(t, "claude", claude.Name())
	assert.Equal(t, "codex", codex.Name())
	assert.NotEqual(t, claude.binary, codex.binary)
	assert.NotEqual(t, claude.args, codex.args)
}

func TestBuildPromptIncludesIdentityInstructionAndTranscript(t *testing.T) {
	cfg := config.Default()
	cfg.ClaudeBin = "claude"
	claude := Claude(cfg)

	ctx := runtime.PromptContext{
		Topic:        "should we cache aggressively",
		Participants: []string{"claude", "codex"},
		Round:        2,
		SelfName:     "claude",
		History: []message.Message{
			{Type: message.TypeStart, Topic: "should we cache aggressively"},
			{Type: message.TypeResponse, From: "codex", Round: 1, Opinion: message.OpinionAgree, Content: "yes", Confidence: 0.8},
			{Type: message.TypeFollowup, From: "user", Target: "claude", Content: "what about memory pressure?"},
		},
	}

	prompt := claude.BuildPrompt(ctx)

	require.Contains(t, prompt, "should we cache aggressively")
	require.Contains(t, prompt, "Round: 2")
	require.Contains(t, prompt, "claude, codex")
	require.Contains(t, prompt, `AGENT:claude`)
	require.Contains(t, prompt, "[round 1] codex")
	require.Contains(t, prompt, "[followup -> claude] user: what about memory pressure?")
}

func TestBuildPromptSkipsStatusRecords(t *testing.T) {
	cfg := config.Default()
	codex := Codex(cfg)

	ctx := runtime.PromptContext{
		SelfName: "codex",
		History: []message.Message{
			{Type: message.TypeStatus, From: "codex", Status: message.StatusThinking, Content: "thinking"},
		},
	}

	prompt := codex.BuildPrompt(ctx)
	assert.False(t, strings.Contains(prompt, "thinking"))
}

func TestSetInvokeTimeoutOverridesPackageDefault(t *testing.T) {
	original := invokeTimeout
	defer func() { invokeTimeout = original }()

	cfg := config.Default()
	cfg.InvokeTimeout = 7 * original
	SetInvokeTimeout(cfg)

	assert.Equal(t, cfg.InvokeTimeout, invokeTimeout)
}

func TestInvokeReturnsFailureForMissingBinary(t *testing.T) {
	cfg := config.Default()
	cfg.ClaudeBin = "definitely-not-a-real-binary-on-this-host"
	claude := Claude(cfg)

	res := claude.Invoke("hello", t.TempDir())
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
}
