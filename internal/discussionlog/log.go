// Package discussionlog implements the append-only, filesystem-backed
// discussion log: one JSONL file per discussion plus a sibling lock file,
// as described in spec.md §4.2.
package discussionlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/discussion-agent/internal/message"
)

// DefaultLockDeadline is how long Append waits to acquire the lock before
// giving up with a retryable error.
const DefaultLockDeadline = 10 * time.Second

// Status is the derived summary of a discussion's current state.
type Status struct {
	ID           string
	Topic        string
	Participants []string
	Context      map[string]interface{}
	StartedAt    string
	EndedAt      string
	CurrentRound int
	Active       bool
}

// Log is a handle onto one discussion's files under baseDir.
type Log struct {
	baseDir string
	id      string
}

// New returns a handle for the discussion id under baseDir. It does not
// touch the filesystem.
func New(baseDir, id string) *Log {
	return &Log{baseDir: baseDir, id: id}
}

// ID returns the discussion id this handle addresses.
func (l *Log) ID() string { return l.id }

func (l *Log) path() string       { return filepath.Join(l.baseDir, l.id+".jsonl") }
func (l *Log) lockPath() string   { return l.path() + ".lock" }
func (l *Log) resultPath() string { return filepath.Join(l.baseDir, l.id+"-result.md") }

// LockPath returns the path of this discussion's lock file, for operator
// tooling that wants to call Diagnose without duplicating the naming
// convention.
func (l *Log) LockPath() string { return l.lockPath() }

// GenerateID returns a new collision-resistant discussion id. The source
// implementation uses a short numeric suffix of a timestamp; a uuid is
// equally valid per spec.md §3 and is what the teacher already uses for
// every other identifier it mints (see SPEC_FULL §11).
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// Create makes baseDir if needed and writes the sole start record at
// seq=1, failing if a log for this id already exists.
func Create(baseDir, topic string, participants []string, context map[string]interface{}) (*Log, message.Message, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, message.Message{}, fmt.Errorf("discussionlog: create base dir: %w", err)
	}

	id := GenerateID()
	l := New(baseDir, id)

	f, err := os.OpenFile(l.path(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, message.Message{}, fmt.Errorf("discussionlog: discussion %s already exists: %w", id, err)
	}
	defer f.Close()

	start := message.Message{
		Seq:          1,
		TS:           message.NowTS(),
		From:         "user",
		Type:         message.TypeStart,
		Topic:        topic,
		Participants: participants,
		Context:      context,
	}
	raw, err := message.Marshal(start)
	if err != nil {
		return nil, message.Message{}, fmt.Errorf("discussionlog: marshal start: %w", err)
	}
	if _, err := f.Write(append(raw, '\n')); err != nil {
		return nil, message.Message{}, fmt.Errorf("discussionlog: write start: %w", err)
	}

	return l, start, nil
}

// Open returns a handle for an existing discussion id, without checking
// that the file exists yet (ReadAll on a missing file returns an empty
// slice, not an error).
func Open(baseDir, id string) *Log {
	return New(baseDir, id)
}

// ReadAll reads and parses every record currently in the log. A missing
// file yields an empty slice, not an error.
func (l *Log) ReadAll() ([]message.Message, error) {
	f, err := os.Open(l.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("discussionlog: open %s: %w", l.path(), err)
	}
	defer f.Close()

	msgs, err := message.ParseAll(f)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Partial describes a message with caller-supplied fields; Seq, TS and
// (for followups without a caller round) Round are assigned by Append.
type Partial = message.Message

// Append performs the critical read-modify-append sequence under the
// cross-process lock: acquire, derive seq (and follow-up round if absent),
// stamp ts, write, release.
func (l *Log) Append(partial Partial) (message.Message, error) {
	if err := acquireLock(l.lockPath(), DefaultLockDeadline); err != nil {
		return message.Message{}, err
	}
	defer releaseLock(l.lockPath())

	existing, err := l.ReadAll()
	if err != nil {
		return message.Message{}, err
	}
	effective := message.EffectiveMessages(existing)

	lastSeq := 0
	for _, m := range effective {
		if m.Seq > lastSeq {
			lastSeq = m.Seq
		}
	}

	full := partial
	full.Seq = lastSeq + 1
	full.TS = message.NowTS()

	if full.Type == message.TypeFollowup && full.Round == 0 {
		full.Round = message.MaxResponseRound(effective) + 1
	}

	raw, err := message.Marshal(full)
	if err != nil {
		return message.Message{}, fmt.Errorf("discussionlog: marshal append: %w", err)
	}

	f, err := os.OpenFile(l.path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return message.Message{}, fmt.Errorf("discussionlog: open for append: %w", err)
	}
	_, werr := f.Write(append(raw, '\n'))
	cerr := f.Close()
	if werr != nil {
		return message.Message{}, fmt.Errorf("discussionlog: write append: %w", werr)
	}
	if cerr != nil {
		return message.Message{}, fmt.Errorf("discussionlog: close after append: %w", cerr)
	}

	l.signalResultRefresh()

	return full, nil
}

// signalResultRefresh is a deferrable, best-effort hook for the external
// result-file renderer (out of scope per spec.md §1): we only need to
// touch the result file's mtime so a collaborator watching it knows to
// re-render. Missing result files, or a failure to touch one, are not
// errors: the refresh is best-effort.
func (l *Log) signalResultRefresh() {
	now := time.Now()
	_ = os.Chtimes(l.resultPath(), now, now)
}

// DeriveStatus computes the Status summary from a message slice (already
// read via ReadAll). Records after the first end are ignored.
func DeriveStatus(id string, msgs []message.Message) Status {
	eff := message.EffectiveMessages(msgs)

	st := Status{ID: id}
	for _, m := range eff {
		switch m.Type {
		case message.TypeStart:
			st.Topic = m.Topic
			st.Participants = m.Participants
			st.Context = m.Context
			st.StartedAt = m.TS
		case message.TypeEnd:
			st.EndedAt = m.TS
		}
	}
	st.CurrentRound = message.MaxResponseRound(eff)
	st.Active = !message.Ended(eff)
	return st
}

// Status reads the log and derives its current Status.
func (l *Log) Status() (Status, error) {
	msgs, err := l.ReadAll()
	if err != nil {
		return Status{}, err
	}
	return DeriveStatus(l.id, msgs), nil
}

// StopFunc stops a Watch loop started with Watch.
type StopFunc func()

// Watch polls the log every interval; whenever the highest seq observed
// grows, it invokes callback with the newly appended tail. Nothing has been
// observed when Watch begins, so the first tick delivers every record
// already in the log. It returns a
// StopFunc that halts polling. Watch performs no work itself between
// ticks: the caller's callback runs synchronously on the polling
// goroutine, matching the single-control-flow model in spec.md §5.
func (l *Log) Watch(interval time.Duration, callback func(tail []message.Message)) StopFunc {
	stop := make(chan struct{})
	lastSeq := 0

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				msgs, err := l.ReadAll()
				if err != nil {
					continue
				}
				eff := message.EffectiveMessages(msgs)
				var maxSeq int
				for _, m := range eff {
					if m.Seq > maxSeq {
						maxSeq = m.Seq
					}
				}
				if maxSeq > lastSeq {
					var tail []message.Message
					for _, m := range eff {
						if m.Seq > lastSeq {
							tail = append(tail, m)
						}
					}
					lastSeq = maxSeq
					callback(tail)
				}
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		close(stop)
	}
}

// List enumerates discussion ids present under baseDir by scanning for
// `*.jsonl` files (excluding lock files, which carry a `.jsonl.lock`
// suffix and are filtered by the glob pattern itself).
func List(baseDir string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(baseDir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("discussionlog: list: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		base := filepath.Base(e)
		ids = append(ids, strings.TrimSuffix(base, ".jsonl"))
	}
	return ids, nil
}

// Helpers below are thin constructors that delegate to Append, per
// spec.md §6 ("Follow-up, end, and plain response helpers are thin
// constructors that delegate to append").

// AppendResponse appends a response record.
func (l *Log) AppendResponse(from string, round int, opinion message.Opinion, content string, confidence float64) (message.Message, error) {
	return l.Append(message.Message{
		From:       from,
		Type:       message.TypeResponse,
		Round:      round,
		Opinion:    opinion,
		Content:    content,
		Confidence: confidence,
	})
}

// AppendFollowup appends a followup record. If round is 0 it will be
// assigned by Append per the follow-up round assignment invariant.
func (l *Log) AppendFollowup(from, content, target string, round int) (message.Message, error) {
	return l.Append(message.Message{
		From:    from,
		Type:    message.TypeFollowup,
		Round:   round,
		Content: content,
		Target:  target,
	})
}

// AppendEnd appends an end record.
func (l *Log) AppendEnd(from, decision string, consensus bool) (message.Message, error) {
	return l.Append(message.Message{
		From:      from,
		Type:      message.TypeEnd,
		Decision:  decision,
		Consensus: consensus,
	})
}

// AppendError appends an error record for the given round.
func (l *Log) AppendError(from string, round int, errText string) (message.Message, error) {
	return l.Append(message.Message{
		From:  from,
		Type:  message.TypeError,
		Round: round,
		Error: errText,
	})
}

// AppendStatus appends a thinking/retrying status record.
func (l *Log) AppendStatus(from string, round int, kind message.StatusKind, content string) (message.Message, error) {
	return l.Append(message.Message{
		From:    from,
		Type:    message.TypeStatus,
		Round:   round,
		Status:  kind,
		Content: content,
	})
}
