// Package runtime implements the agent runtime: the per-agent long-running
// scheduler described in spec.md §4.4 — watcher lifecycle, turn decision,
// bounded concurrency admission with a FIFO queue, per-discussion circuit
// breaker, and retry-with-backoff. This is "the hard part" per spec.md §1.
//
// Grounded on the teacher's internal/executor event-loop shape (single
// control flow reducing parallel child-process results), its
// escalation.go mutex-guarded-map bookkeeping pattern, and its
// agent_circuit_breaker tests for the breaker's trip/cooldown contract.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/steveyegge/discussion-agent/internal/config"
	"github.com/steveyegge/discussion-agent/internal/discussionindex"
	"github.com/steveyegge/discussion-agent/internal/discussionlog"
	"github.com/steveyegge/discussion-agent/internal/message"
)

// Binding is the thin, concrete-agent-supplied specialization: how to
// invoke this agent's underlying CLI and how to render a prompt from
// discussion context. See internal/agent for the claude/codex bindings.
type Binding interface {
	// Name is this agent's identity, matched case-insensitively against
	// the AGENT:<name> header and the discussion's participants list.
	Name() string

	// BuildPrompt renders the full instruction text for one turn.
	BuildPrompt(ctx PromptContext) string

	// Invoke runs the underlying CLI with prompt in workingDir and
	// returns its outcome (see internal/invoker.Result).
	Invoke(prompt, workingDir string) InvokeResult
}

// InvokeResult mirrors internal/invoker.Result without forcing every
// Binding implementation to import that package directly.
type InvokeResult struct {
	OK     bool
	Output string
	Error  string
}

// PromptContext carries everything BuildPrompt needs to render a turn's
// instructions, per spec.md §4.4.4 step 2.
type PromptContext struct {
	Topic        string
	Participants []string
	WorkingDir   string
	History      []message.Message
	Round        int
	SelfName     string
}

// Candidate is what ShouldRespond returns when this agent should take a
// turn.
type Candidate struct {
	Round   int
	Trigger string // "start" | "followup" | "response"
}

// Flow-control signals. These never surface to the user; they are logged
// quietly per spec.md §7.
var (
	ErrAlreadyResponding = fmt.Errorf("ALREADY_RESPONDING")
	ErrAlreadyAttempted  = fmt.Errorf("ALREADY_ATTEMPTED")
	ErrQueued            = fmt.Errorf("QUEUED")
	ErrCircuitOpen       = fmt.Errorf("LOCAL_CIRCUIT_OPEN")
)

type retryState struct {
	attempt int
	max     int
}

type queueItem struct {
	id         string
	round      int
	enqueuedAt time.Time
}

// discussionWatcher tracks one active per-discussion polling registration.
type discussionWatcher struct {
	stop discussionlog.StopFunc
}

// Runtime is one agent process's owned state (spec.md §3, "Agent runtime
// state"). All fields are guarded by mu; per the teacher's Design Notes,
// one mutex covering the whole struct is sufficient since contention is
// local to a single process and never held across a child-process call.
type Runtime struct {
	binding Binding
	baseDir string
	cfg     config.Config

	mu sync.Mutex

	watched         map[string]int
	lastWatchedAt   map[string]time.Time
	watchers        map[string]*discussionWatcher
	responding      map[string]bool
	attemptedRounds map[string]map[int]bool
	retries         map[string]*retryState
	failures        map[string]int
	circuitOpen     map[string]time.Time
	pendingQueue    []queueItem
	activeCount     int
	draining        bool

	// pollLimiter bounds the total rate at which poll callbacks (each of
	// which re-reads its discussion log in offer) proceed across every
	// watched discussion, even though each discussion's own ticker is
	// independent (spec.md §5: timers never preempt each other, but
	// nothing stops them from all landing in the same instant). The
	// tickers' own reads are not throttled by it.
	pollLimiter *rate.Limiter

	// index is the derived discussion-summary cache (SPEC_FULL §12), kept
	// in sync by scan so discussctl list can show watcher priority, which
	// the log files themselves don't record. It is optional: if it fails to
	// open, the runtime logs a warning and proceeds without it, since it
	// is never the source of truth for any decision this package makes.
	index *discussionindex.Index

	running   bool
	group     *errgroup.Group
	groupStop context.CancelFunc
}

// New constructs a Runtime for binding, rooted at baseDir, with cfg's
// tunables (see internal/config.Default for spec.md's named defaults).
func New(binding Binding, baseDir string, cfg config.Config) *Runtime {
	watched := cfg.MaxWatchedDiscussions
	if watched < 1 {
		watched = 1
	}
	return &Runtime{
		binding:         binding,
		baseDir:         baseDir,
		cfg:             cfg,
		watched:         map[string]int{},
		lastWatchedAt:   map[string]time.Time{},
		watchers:        map[string]*discussionWatcher{},
		responding:      map[string]bool{},
		attemptedRounds: map[string]map[int]bool{},
		retries:         map[string]*retryState{},
		failures:        map[string]int{},
		circuitOpen:     map[string]time.Time{},
		pollLimiter:     rate.NewLimiter(rate.Every(cfg.PollInterval/time.Duration(watched)), watched),
	}
}

// Name returns the underlying binding's identity.
func (r *Runtime) Name() string { return r.binding.Name() }

// ActiveCount reports the current number of in-flight response attempts.
func (r *Runtime) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeCount
}

// QueueLen reports the current pending-queue depth.
func (r *Runtime) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingQueue)
}

// IsWatching reports whether id currently has a registered watcher.
func (r *Runtime) IsWatching(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.watchers[id]
	return ok
}

// CircuitOpenUntil returns the time before which id is skipped by the
// circuit breaker, or the zero time if the circuit is closed.
func (r *Runtime) CircuitOpenUntil(id string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.circuitOpen[id]
}
