package runtime

import (
	"time"

	"github.com/steveyegge/discussion-agent/internal/agentlog"
)

// admit implements spec.md §4.4.3: circuit check, capacity/queue handling,
// per-discussion responding lock, and round dedup. On success, it marks
// id as responding and round as attempted, and the caller must eventually
// call finalize(id, success) exactly once.
func (r *Runtime) admit(id string, round int) error {
	r.mu.Lock()

	if until, ok := r.circuitOpen[id]; ok {
		if time.Now().Before(until) {
			r.mu.Unlock()
			return ErrCircuitOpen
		}
		delete(r.circuitOpen, id)
	}

	if r.activeCount >= r.cfg.MaxConcurrent {
		if r.queueContains(id) {
			r.mu.Unlock()
			return ErrQueued
		}
		if len(r.pendingQueue) >= r.cfg.MaxQueueSize {
			evicted := r.pendingQueue[0]
			r.pendingQueue = r.pendingQueue[1:]
			agentlog.Warn("runtime[%s]: queue full, evicting discussion %s (round %d)", r.binding.Name(), evicted.id, evicted.round)
		}
		r.pendingQueue = append(r.pendingQueue, queueItem{id: id, round: round, enqueuedAt: time.Now()})
		r.mu.Unlock()
		return ErrQueued
	}

	r.activeCount++

	if r.responding[id] {
		r.activeCount--
		r.mu.Unlock()
		r.drainQueue()
		return ErrAlreadyResponding
	}

	if r.attemptedRounds[id] != nil && r.attemptedRounds[id][round] {
		r.activeCount--
		r.mu.Unlock()
		r.drainQueue()
		return ErrAlreadyAttempted
	}

	r.responding[id] = true
	if r.attemptedRounds[id] == nil {
		r.attemptedRounds[id] = map[int]bool{}
	}
	r.attemptedRounds[id][round] = true

	r.mu.Unlock()
	return nil
}

func (r *Runtime) queueContains(id string) bool {
	for _, q := range r.pendingQueue {
		if q.id == id {
			return true
		}
	}
	return false
}

// finalize implements spec.md §4.4.6: release the responding lock,
// decrement activeCount, update the circuit breaker, and drain the queue.
func (r *Runtime) finalize(id string, success bool) {
	r.mu.Lock()
	delete(r.responding, id)
	r.activeCount--
	if r.activeCount < 0 {
		r.activeCount = 0
	}

	if success {
		delete(r.failures, id)
		delete(r.circuitOpen, id)
	} else {
		r.failures[id]++
		if r.failures[id] >= r.cfg.LocalCircuitThreshold {
			r.circuitOpen[id] = time.Now().Add(r.cfg.LocalCircuitCooldown)
			agentlog.Warn("runtime[%s]: circuit opened for discussion %s after %d consecutive failures", r.binding.Name(), id, r.failures[id])
		}
	}
	r.mu.Unlock()

	r.drainQueue()
}

// drainQueue re-offers queued items while capacity allows, guarded by
// draining to prevent recursive drain storms when a drained item
// immediately fails admission and calls finalize/drainQueue itself.
func (r *Runtime) drainQueue() {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return
	}
	r.draining = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.draining = false
		r.mu.Unlock()
	}()

	for {
		r.mu.Lock()
		if r.activeCount >= r.cfg.MaxConcurrent || len(r.pendingQueue) == 0 {
			r.mu.Unlock()
			return
		}
		item := r.pendingQueue[0]
		r.pendingQueue = r.pendingQueue[1:]
		r.mu.Unlock()

		r.offer(item.id, item.round, "requeued")
	}
}

// removeFromQueue drops every queued entry for id, used by cleanup.
func (r *Runtime) removeFromQueue(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pendingQueue[:0]
	for _, q := range r.pendingQueue {
		if q.id != id {
			out = append(out, q)
		}
	}
	r.pendingQueue = out
}
