// Package config loads agent runtime configuration from an optional YAML
// file merged with environment variable overrides, following the
// teacher's env-var-first discovery pattern (see
// internal/storage/env_test.go's VC_DB_PATH check) generalized to a
// small typed config struct loaded via gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables named throughout spec.md §4.4 and §6.
type Config struct {
	// BaseDir is where discussion .jsonl/.lock/-result.md files live.
	BaseDir string `yaml:"baseDir"`

	// ClaudeBin and CodexBin are the binary paths/names for the two
	// concrete agent bindings.
	ClaudeBin string `yaml:"claudeBin"`
	CodexBin  string `yaml:"codexBin"`

	MaxConcurrent          int           `yaml:"maxConcurrent"`
	MaxQueueSize           int           `yaml:"maxQueueSize"`
	MaxWatchedDiscussions  int           `yaml:"maxWatchedDiscussions"`
	MaxRounds              int           `yaml:"maxRounds"`
	PollInterval           time.Duration `yaml:"pollInterval"`
	ScanInterval           time.Duration `yaml:"scanInterval"`
	CleanupInterval        time.Duration `yaml:"cleanupInterval"`
	InvokeTimeout          time.Duration `yaml:"invokeTimeout"`
	MaxRetries             int           `yaml:"maxRetries"`
	LocalCircuitThreshold  int           `yaml:"localCircuitThreshold"`
	LocalCircuitCooldown   time.Duration `yaml:"localCircuitCooldown"`
}

// Default returns the tunables named as defaults throughout spec.md.
func Default() Config {
	return Config{
		BaseDir:               "./discussions",
		ClaudeBin:             "claude",
		CodexBin:              "codex",
		MaxConcurrent:         5,
		MaxQueueSize:          20,
		MaxWatchedDiscussions: 50,
		MaxRounds:             5,
		PollInterval:          2 * time.Second,
		ScanInterval:          4 * time.Second,
		CleanupInterval:       60 * time.Second,
		InvokeTimeout:         180 * time.Second,
		MaxRetries:            3,
		LocalCircuitThreshold: 5,
		LocalCircuitCooldown:  60 * time.Second,
	}
}

// Load reads path (if non-empty and it exists) as YAML over the defaults,
// then applies environment variable overrides, which always win.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("MULTI_AGENT_BASE_DIR"); ok && v != "" {
		cfg.BaseDir = v
	}
	if v, ok := os.LookupEnv("CLAUDE_BIN"); ok && v != "" {
		cfg.ClaudeBin = v
	}
	if v, ok := os.LookupEnv("CODEX_BIN"); ok && v != "" {
		cfg.CodexBin = v
	}
	if v, ok := envInt("MULTI_AGENT_MAX_CONCURRENT"); ok {
		cfg.MaxConcurrent = v
	}
	if v, ok := envInt("MULTI_AGENT_MAX_QUEUE"); ok {
		cfg.MaxQueueSize = v
	}
	if v, ok := envDuration("MULTI_AGENT_POLL_INTERVAL"); ok {
		cfg.PollInterval = v
	}
}

func envInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(name string) (time.Duration, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
