package runtime

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steveyegge/discussion-agent/internal/config"
	"github.com/steveyegge/discussion-agent/internal/discussionindex"
	"github.com/steveyegge/discussion-agent/internal/discussionlog"
)

func TestStartRegistersWatcherForExistingDiscussion(t *testing.T) {
	baseDir := t.TempDir()
	_, _, err := discussionlog.Create(baseDir, "t", []string{"claude", "codex"}, nil)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.PollInterval = 20 * time.Millisecond
	cfg.ScanInterval = 20 * time.Millisecond
	cfg.CleanupInterval = time.Hour
	r := New(&scriptedBinding{name: "claude", outputs: []InvokeResult{{OK: true, Output: "AGENT:claude\nI agree."}}}, baseDir, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	ids, err := discussionlog.List(baseDir)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	waitFor(t, func() bool { return r.IsWatching(ids[0]) })
}

func TestScanReleasesEndedDiscussions(t *testing.T) {
	baseDir := t.TempDir()
	log, _, err := discussionlog.Create(baseDir, "t", []string{"claude", "codex"}, nil)
	require.NoError(t, err)
	_, err = log.AppendEnd("user", "done", true)
	require.NoError(t, err)

	cfg := config.Default()
	r := New(&scriptedBinding{name: "claude"}, baseDir, cfg)
	r.ensureWatcher(log.ID())
	require.True(t, r.IsWatching(log.ID()))

	r.scan()
	require.False(t, r.IsWatching(log.ID()))
}

func TestCleanupReleasesDiscussionWithMissingFile(t *testing.T) {
	baseDir := t.TempDir()
	cfg := config.Default()
	r := New(&scriptedBinding{name: "claude"}, baseDir, cfg)

	r.mu.Lock()
	r.watchers["ghost"] = &discussionWatcher{stop: func() {}}
	r.mu.Unlock()

	r.cleanup()
	require.False(t, r.IsWatching("ghost"))
}

func TestScanKeepsWatcherForRespondingDiscussionEvenIfDeprioritized(t *testing.T) {
	baseDir := t.TempDir()

	older, _, err := discussionlog.Create(baseDir, "older", []string{"claude", "codex"}, nil)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	newer, _, err := discussionlog.Create(baseDir, "newer", []string{"claude", "codex"}, nil)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.MaxWatchedDiscussions = 1
	r := New(&scriptedBinding{name: "claude"}, baseDir, cfg)

	r.ensureWatcher(older.ID())
	r.ensureWatcher(newer.ID())
	require.True(t, r.IsWatching(older.ID()))
	require.True(t, r.IsWatching(newer.ID()))

	r.mu.Lock()
	r.responding[older.ID()] = true
	r.mu.Unlock()

	r.scan()

	require.True(t, r.IsWatching(older.ID()), "a discussion with a response in flight must keep its watcher even when deprioritized")
	require.True(t, r.IsWatching(newer.ID()), "the higher-priority discussion must still hold its watcher")

	r.mu.Lock()
	r.responding[older.ID()] = false
	r.mu.Unlock()

	r.scan()
	require.False(t, r.IsWatching(older.ID()), "once the response finishes, the deprioritized discussion's watcher is released")
}

func TestScanRecordsWatchedStateInDiscussionIndex(t *testing.T) {
	baseDir := t.TempDir()
	log, _, err := discussionlog.Create(baseDir, "topic a", []string{"claude", "codex"}, nil)
	require.NoError(t, err)

	idx, err := discussionindex.Open(filepath.Join(baseDir, indexFileName))
	require.NoError(t, err)
	defer idx.Close()

	cfg := config.Default()
	r := New(&scriptedBinding{name: "claude"}, baseDir, cfg)
	r.mu.Lock()
	r.index = idx
	r.mu.Unlock()

	r.scan()

	summary, ok, err := idx.Get(context.Background(), log.ID())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, summary.Watched)
	require.Equal(t, "topic a", summary.Topic)

	_, err = log.AppendEnd("user", "done", true)
	require.NoError(t, err)
	r.scan()

	summary, ok, err = idx.Get(context.Background(), log.ID())
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, summary.Watched, "an ended discussion must be marked unwatched in the index")
}

func TestStopClearsAllWatchers(t *testing.T) {
	baseDir := t.TempDir()
	_, _, err := discussionlog.Create(baseDir, "t", []string{"claude", "codex"}, nil)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.PollInterval = 20 * time.Millisecond
	cfg.ScanInterval = 20 * time.Millisecond
	cfg.CleanupInterval = time.Hour
	r := New(&scriptedBinding{name: "claude", outputs: []InvokeResult{{OK: true, Output: "AGENT:claude\nI agree."}}}, baseDir, cfg)

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	ids, err := discussionlog.List(baseDir)
	require.NoError(t, err)
	waitFor(t, func() bool { return r.IsWatching(ids[0]) })

	r.Stop()
	r.mu.Lock()
	n := len(r.watchers)
	r.mu.Unlock()
	require.Equal(t, 0, n)
}
