package runtime

import (
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/discussion-agent/internal/agentlog"
	"github.com/steveyegge/discussion-agent/internal/discussionlog"
	"github.com/steveyegge/discussion-agent/internal/identity"
	"github.com/steveyegge/discussion-agent/internal/message"
)

// offer is the single entry point from the watcher poll callback, the
// queue drain loop, and retry re-entry: it re-derives ShouldRespond
// against the current log state, then attempts admission and, on
// success, executes the turn. round and cause name where the offer came
// from; neither is used here, since the decision always re-derives from
// the log.
func (r *Runtime) offer(id string, round int, cause string) {
	log := discussionlog.Open(r.baseDir, id)
	msgs, err := log.ReadAll()
	if err != nil {
		agentlog.Warn("runtime[%s]: read %s: %v", r.binding.Name(), id, err)
		return
	}

	status := discussionlog.DeriveStatus(id, msgs)
	candidate := ShouldRespond(msgs, r.binding.Name(), status.Participants, r.cfg.MaxRounds)
	if candidate == nil {
		return
	}

	r.admitAndExecute(id, log, msgs, status, *candidate)
}

func (r *Runtime) admitAndExecute(id string, log *discussionlog.Log, msgs []message.Message, status discussionlog.Status, candidate Candidate) {
	if err := r.admit(id, candidate.Round); err != nil {
		return // flow-control signal; expected, not surfaced (spec.md §7)
	}

	go r.executeResponse(id, log, status, candidate)
}

// executeResponse implements spec.md §4.4.4: emit thinking, build the
// prompt, invoke, validate identity, parse opinion, apply consensus
// closure, append the response, and finalize.
func (r *Runtime) executeResponse(id string, log *discussionlog.Log, status discussionlog.Status, candidate Candidate) {
	self := r.binding.Name()

	if _, err := log.AppendStatus(self, candidate.Round, message.StatusThinking, "thinking"); err != nil {
		agentlog.Warn("runtime[%s]: append thinking for %s: %v", self, id, err)
	}

	workingDir := ""
	if wd, ok := status.Context["workingDir"].(string); ok {
		workingDir = wd
	}

	history, _ := log.ReadAll()
	prompt := r.binding.BuildPrompt(PromptContext{
		Topic:        status.Topic,
		Participants: status.Participants,
		WorkingDir:   workingDir,
		History:      history,
		Round:        candidate.Round,
		SelfName:     self,
	})

	res := r.binding.Invoke(prompt, workingDir)
	if !res.OK {
		r.finalize(id, false)
		if strings.Contains(res.Error, "Timeout") {
			r.beginRetry(id, candidate.Round)
			return
		}
		if _, err := log.AppendError(self, candidate.Round, res.Error); err != nil {
			agentlog.Warn("runtime[%s]: append error for %s: %v", self, id, err)
		}
		return
	}

	others := otherParticipants(status.Participants, self)
	body, verr := identity.Validate(res.Output, self, others)
	if verr != nil {
		if _, err := log.AppendStatus(self, candidate.Round, message.StatusRetrying, "identity validation failed, retrying once"); err != nil {
			agentlog.Warn("runtime[%s]: append retrying for %s: %v", self, id, err)
		}
		res2 := r.binding.Invoke(prompt, workingDir)
		if !res2.OK {
			r.finalize(id, false)
			if _, err := log.AppendError(self, candidate.Round, res2.Error); err != nil {
				agentlog.Warn("runtime[%s]: append error for %s: %v", self, id, err)
			}
			return
		}
		body, verr = identity.Validate(res2.Output, self, others)
		if verr != nil {
			r.finalize(id, false)
			if _, err := log.AppendError(self, candidate.Round, verr.Error()); err != nil {
				agentlog.Warn("runtime[%s]: append error for %s: %v", self, id, err)
			}
			return
		}
	}

	opinion := identity.ParseOpinion(body)
	confidence := identity.ParseConfidence(body)
	counterpart := firstOrSelf(others, self)
	body = identity.ApplyConsensusClosure(body, opinion, counterpart)

	if _, err := log.AppendResponse(self, candidate.Round, opinion, body, confidence); err != nil {
		agentlog.Warn("runtime[%s]: append response for %s: %v", self, id, err)
		r.finalize(id, false)
		return
	}

	r.finalize(id, true)
}

func otherParticipants(participants []string, self string) []string {
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		if !strings.EqualFold(p, self) {
			out = append(out, p)
		}
	}
	return out
}

func firstOrSelf(others []string, self string) string {
	if len(others) > 0 {
		return others[0]
	}
	return self
}

// beginRetry implements spec.md §4.4.5: up to MaxRetries attempts with
// exponential backoff capped at 120s, clearing the attempted-round entry
// between attempts so ShouldRespond can re-offer it, and releasing the
// responding lock (already released by finalize(false) above) before
// re-entering admission.
func (r *Runtime) beginRetry(id string, round int) {
	r.mu.Lock()
	st, ok := r.retries[id]
	if !ok {
		st = &retryState{attempt: 0, max: r.cfg.MaxRetries}
		r.retries[id] = st
	}
	st.attempt++
	attempt := st.attempt
	maxAttempts := st.max
	r.mu.Unlock()

	log := discussionlog.Open(r.baseDir, id)

	if attempt > maxAttempts {
		r.mu.Lock()
		delete(r.retries, id)
		r.mu.Unlock()
		if _, err := log.AppendError(r.binding.Name(), round, "Timeout: exhausted retries"); err != nil {
			agentlog.Warn("runtime[%s]: append exhaustion error for %s: %v", r.binding.Name(), id, err)
		}
		return
	}

	if _, err := log.AppendStatus(r.binding.Name(), round, message.StatusRetrying,
		statusRetryingLabel(attempt, maxAttempts)); err != nil {
		agentlog.Warn("runtime[%s]: append retrying for %s: %v", r.binding.Name(), id, err)
	}

	r.mu.Lock()
	if r.attemptedRounds[id] != nil {
		delete(r.attemptedRounds[id], round)
	}
	r.mu.Unlock()

	delay := backoffDelay(attempt)
	time.AfterFunc(delay, func() {
		r.offer(id, round, "retry")
	})
}

func statusRetryingLabel(attempt, max int) string {
	return time.Now().UTC().Format(time.RFC3339) + " retrying " + strconv.Itoa(attempt) + "/" + strconv.Itoa(max)
}

// backoffDelay returns min(30s * 2^(attempt-1), 120s) for 1-indexed attempt.
func backoffDelay(attempt int) time.Duration {
	base := 30 * time.Second
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= 120*time.Second {
			return 120 * time.Second
		}
	}
	if d > 120*time.Second {
		d = 120 * time.Second
	}
	return d
}
