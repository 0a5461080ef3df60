package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxConcurrent)
	assert.Equal(t, 20, cfg.MaxQueueSize)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxConcurrent: 2\nbaseDir: /tmp/disc\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, "/tmp/disc", cfg.BaseDir)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseDir: /tmp/from-file\n"), 0644))

	t.Setenv("MULTI_AGENT_BASE_DIR", "/tmp/from-env")
	t.Setenv("MULTI_AGENT_MAX_CONCURRENT", "9")
	t.Setenv("MULTI_AGENT_POLL_INTERVAL", "500ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", cfg.BaseDir)
	assert.Equal(t, 9, cfg.MaxConcurrent)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("/no/such/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default().MaxConcurrent, cfg.MaxConcurrent)
}
