package runtime

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/discussion-agent/internal/agentlog"
	"github.com/steveyegge/discussion-agent/internal/discussionindex"
	"github.com/steveyegge/discussion-agent/internal/discussionlog"
	"github.com/steveyegge/discussion-agent/internal/message"
)

// indexFileName is the discussion-summary cache's filename under baseDir.
const indexFileName = ".discussionindex.db"

// Start implements spec.md §4.4.1: it begins the scan timer (discovering
// and prioritizing discussions to watch) and the cleanup timer (releasing
// watchers for discussions that ended or disappeared). It returns once
// both supervising goroutines are registered; call Stop to unwind them.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	groupCtx, cancel := context.WithCancel(ctx)
	g, groupCtx := errgroup.WithContext(groupCtx)
	r.group = g
	r.groupStop = cancel
	r.mu.Unlock()

	if idx, err := discussionindex.Open(filepath.Join(r.baseDir, indexFileName)); err != nil {
		agentlog.Warn("runtime[%s]: open discussion index: %v (continuing without it)", r.binding.Name(), err)
	} else {
		r.mu.Lock()
		r.index = idx
		r.mu.Unlock()
	}

	scanInterval := r.cfg.ScanInterval
	cleanupInterval := r.cfg.CleanupInterval

	g.Go(func() error {
		r.scan()
		ticker := time.NewTicker(scanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				r.scan()
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				r.cleanup()
			}
		}
	})

	return nil
}

// Stop unwinds every registered watcher and waits for the supervising
// goroutines to exit, then logs the in-flight count so an operator can
// see whether anything was abandoned mid-response (SPEC_FULL §12).
func (r *Runtime) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop := r.groupStop
	group := r.group
	inFlight := r.activeCount
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
	if group != nil {
		_ = group.Wait()
	}

	r.mu.Lock()
	for id, w := range r.watchers {
		w.stop()
		delete(r.watchers, id)
	}
	idx := r.index
	r.index = nil
	r.mu.Unlock()

	if idx != nil {
		if err := idx.Close(); err != nil {
			agentlog.Warn("runtime[%s]: close discussion index: %v", r.binding.Name(), err)
		}
	}

	agentlog.Info("runtime[%s]: stopped with %d response(s) in flight", r.binding.Name(), inFlight)
}

// candidateDiscussion is the scan's working view of one discussion, used
// to prioritize which ids get a watcher when watched discussions exceed
// MaxWatchedDiscussions.
type candidateDiscussion struct {
	id           string
	lastActivity time.Time
	lastWatched  time.Time
	status       discussionlog.Status
	lastSeq      int
}

// scan enumerates every discussion under baseDir, drops ones that have
// ended, and (re)registers watchers for the highest-priority subset,
// ranked by most-recent-activity first and then by least-recently-watched
// (spec.md §4.4.1: "recency desc, staleness desc").
func (r *Runtime) scan() {
	ids, err := discussionlog.List(r.baseDir)
	if err != nil {
		agentlog.Warn("runtime[%s]: scan: list discussions: %v", r.binding.Name(), err)
		return
	}

	var candidates []candidateDiscussion
	for _, id := range ids {
		log := discussionlog.Open(r.baseDir, id)
		msgs, err := log.ReadAll()
		if err != nil {
			continue
		}
		eff := message.EffectiveMessages(msgs)
		if message.Ended(eff) {
			r.releaseDiscussion(id)
			continue
		}

		var lastActivity time.Time
		lastSeq := 0
		for _, m := range eff {
			if ts, perr := time.Parse(time.RFC3339Nano, m.TS); perr == nil && ts.After(lastActivity) {
				lastActivity = ts
			}
			if m.Seq > lastSeq {
				lastSeq = m.Seq
			}
		}

		r.mu.Lock()
		lastWatched := r.lastWatchedAt[id]
		r.mu.Unlock()

		candidates = append(candidates, candidateDiscussion{
			id:           id,
			lastActivity: lastActivity,
			lastWatched:  lastWatched,
			status:       discussionlog.DeriveStatus(id, msgs),
			lastSeq:      lastSeq,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].lastActivity.Equal(candidates[j].lastActivity) {
			return candidates[i].lastActivity.After(candidates[j].lastActivity)
		}
		return candidates[i].lastWatched.Before(candidates[j].lastWatched)
	})

	limit := r.cfg.MaxWatchedDiscussions
	if limit > len(candidates) {
		limit = len(candidates)
	}
	keep := make(map[string]bool, limit)
	for i := 0; i < limit; i++ {
		keep[candidates[i].id] = true
		r.ensureWatcher(candidates[i].id)
	}

	// A discussion that dropped out of the keep-set is still left alone if
	// a response is in flight for it; losing the watcher mid-response would
	// strand the eventual result unobserved.
	r.mu.Lock()
	for id, w := range r.watchers {
		if !keep[id] && !r.responding[id] {
			w.stop()
			delete(r.watchers, id)
			delete(r.watched, id)
		}
	}
	idx := r.index
	r.mu.Unlock()

	if idx != nil {
		r.syncIndex(idx, candidates, keep)
	}
}

// syncIndex records this scan's priority ranking in the discussion index
// so discussctl list can show why a discussion is or isn't watched
// without needing a live connection to this process.
func (r *Runtime) syncIndex(idx *discussionindex.Index, candidates []candidateDiscussion, keep map[string]bool) {
	ctx := context.Background()
	for i, c := range candidates {
		summary := discussionindex.Summary{
			ID:           c.id,
			Topic:        c.status.Topic,
			Participants: c.status.Participants,
			CurrentRound: c.status.CurrentRound,
			Active:       c.status.Active,
			LastSeq:      c.lastSeq,
			StartedAt:    c.status.StartedAt,
			EndedAt:      c.status.EndedAt,
			Watched:      keep[c.id],
			PriorityHint: float64(i),
		}
		if err := idx.Upsert(ctx, summary); err != nil {
			agentlog.Warn("runtime[%s]: index upsert %s: %v", r.binding.Name(), c.id, err)
		}
	}
}

// ensureWatcher registers a polling watcher for id if one isn't already
// active, rate-limited globally by pollLimiter so a large watched set
// doesn't all poll in lockstep.
func (r *Runtime) ensureWatcher(id string) {
	r.mu.Lock()
	if _, ok := r.watchers[id]; ok {
		r.mu.Unlock()
		return
	}
	r.watched[id]++
	r.lastWatchedAt[id] = time.Now()
	r.mu.Unlock()

	log := discussionlog.Open(r.baseDir, id)
	stop := log.Watch(r.cfg.PollInterval, func(tail []message.Message) {
		_ = r.pollLimiter.Wait(context.Background())

		r.mu.Lock()
		r.lastWatchedAt[id] = time.Now()
		r.mu.Unlock()

		if message.Ended(tail) {
			r.releaseDiscussion(id)
			return
		}

		r.offer(id, 0, "poll")
	})

	r.mu.Lock()
	r.watchers[id] = &discussionWatcher{stop: stop}
	r.mu.Unlock()
}

// releaseDiscussion tears down all per-discussion bookkeeping: the
// watcher itself plus retry/attempt/circuit/queue state, so an ended or
// vanished discussion leaves no residue (spec.md §4.4.1 cleanup timer).
func (r *Runtime) releaseDiscussion(id string) {
	r.mu.Lock()
	if w, ok := r.watchers[id]; ok {
		w.stop()
		delete(r.watchers, id)
	}
	delete(r.watched, id)
	delete(r.lastWatchedAt, id)
	delete(r.responding, id)
	delete(r.attemptedRounds, id)
	delete(r.retries, id)
	delete(r.failures, id)
	delete(r.circuitOpen, id)
	idx := r.index
	r.mu.Unlock()

	if idx != nil {
		if err := idx.SetWatched(context.Background(), id, false); err != nil {
			agentlog.Warn("runtime[%s]: index unwatch %s: %v", r.binding.Name(), id, err)
		}
	}

	r.removeFromQueue(id)
}

// cleanup sweeps every currently-watched discussion for ones that have
// ended or whose log file has disappeared, releasing them. It runs on
// its own timer (default 60s) in addition to the immediate release a
// poll callback triggers on observing an end record.
func (r *Runtime) cleanup() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.watchers))
	for id := range r.watchers {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		log := discussionlog.Open(r.baseDir, id)
		msgs, err := log.ReadAll()
		if err != nil {
			continue
		}
		if msgs == nil || message.Ended(message.EffectiveMessages(msgs)) {
			r.releaseDiscussion(id)
		}
	}
}
