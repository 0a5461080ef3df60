package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/discussion-agent/internal/config"
	"github.com/steveyegge/discussion-agent/internal/discussionlog"
	"github.com/steveyegge/discussion-agent/internal/message"
)

func TestBeginRetryExhaustsAfterMaxAttempts(t *testing.T) {
	baseDir := t.TempDir()
	log, _, err := discussionlog.Create(baseDir, "t", []string{"claude", "codex"}, nil)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.MaxRetries = 2
	r := New(&scriptedBinding{name: "claude"}, baseDir, cfg)

	id := log.ID()
	r.beginRetry(id, 1)
	r.beginRetry(id, 1)
	r.beginRetry(id, 1)

	r.mu.Lock()
	_, stillTracked := r.retries[id]
	r.mu.Unlock()
	require.False(t, stillTracked)

	msgs, err := log.ReadAll()
	require.NoError(t, err)
	var errCount int
	for _, m := range msgs {
		if m.Type == message.TypeError {
			errCount++
		}
	}
	require.Equal(t, 1, errCount)
}

func TestBackoffDelayCapsAt120Seconds(t *testing.T) {
	require.Equal(t, 30*time.Second, backoffDelay(1))
	require.Equal(t, 60*time.Second, backoffDelay(2))
	require.Equal(t, 120*time.Second, backoffDelay(3))
	require.Equal(t, 120*time.Second, backoffDelay(4))
	require.Equal(t, 120*time.Second, backoffDelay(10))
}
