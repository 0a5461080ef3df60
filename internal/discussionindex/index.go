// Package discussionindex maintains a derived, rebuildable SQLite cache of
// discussion summaries, together with the watched flag and priority rank
// the agent runtime's scan last recorded for each. Rebuild and the
// runtime's scan still read every .jsonl file in the base directory; the
// index adds the watcher state the logs don't carry. The index is never
// authoritative: the log files
// are the source of truth (spec.md §4.2), and the index can always be
// thrown away and rebuilt from them.
//
// Grounded on the teacher's internal/storage/sqlite package: same
// sql.Open/schema-exec/New shape, generalized from an issue tracker's
// projection to a discussion summary projection.
package discussionindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/discussion-agent/internal/discussionlog"
	"github.com/steveyegge/discussion-agent/internal/message"
)

const schema = `
CREATE TABLE IF NOT EXISTS discussions (
	id            TEXT PRIMARY KEY,
	topic         TEXT NOT NULL,
	participants  TEXT NOT NULL,
	current_round INTEGER NOT NULL DEFAULT 0,
	active        INTEGER NOT NULL DEFAULT 1,
	last_seq      INTEGER NOT NULL DEFAULT 0,
	started_at    TEXT,
	ended_at      TEXT,
	priority_hint REAL NOT NULL DEFAULT 0,
	watched       INTEGER NOT NULL DEFAULT 0
);
`

// Summary is one row of the index: a discussion's last-known-derived
// status, plus the watcher priority the agent runtime's scan last computed
// for it (Watched/PriorityHint), if any. A discussion the runtime has never
// scanned carries Watched=false, PriorityHint=0.
type Summary struct {
	ID           string
	Topic        string
	Participants []string
	CurrentRound int
	Active       bool
	LastSeq      int
	StartedAt    string
	EndedAt      string
	PriorityHint float64
	Watched      bool
}

// Index is a handle onto the SQLite-backed cache.
type Index struct {
	db *sql.DB
}

// Open creates (if needed) and opens the index database at path.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("discussionindex: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("discussionindex: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("discussionindex: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("discussionindex: init schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// Upsert writes or replaces a discussion's summary row.
func (idx *Index) Upsert(ctx context.Context, s Summary) error {
	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO discussions (id, topic, participants, current_round, active, last_seq, started_at, ended_at, priority_hint, watched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topic = excluded.topic,
			participants = excluded.participants,
			current_round = excluded.current_round,
			active = excluded.active,
			last_seq = excluded.last_seq,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			priority_hint = excluded.priority_hint,
			watched = excluded.watched
	`, s.ID, s.Topic, strings.Join(s.Participants, ","), s.CurrentRound,
		boolToInt(s.Active), s.LastSeq, s.StartedAt, s.EndedAt, s.PriorityHint, boolToInt(s.Watched))
	if err != nil {
		return fmt.Errorf("discussionindex: upsert %s: %w", s.ID, err)
	}
	return nil
}

// SetWatched flips the watched flag for id without touching its other
// columns. It is a no-op if id isn't indexed yet. Used by the agent
// runtime to mark a discussion unwatched the moment it's released,
// without needing the rest of that discussion's summary on hand.
func (idx *Index) SetWatched(ctx context.Context, id string, watched bool) error {
	_, err := idx.db.ExecContext(ctx, `UPDATE discussions SET watched = ? WHERE id = ?`, boolToInt(watched), id)
	if err != nil {
		return fmt.Errorf("discussionindex: set watched %s: %w", id, err)
	}
	return nil
}

// Delete removes id from the index (used when a discussion's log file
// disappears from disk).
func (idx *Index) Delete(ctx context.Context, id string) error {
	_, err := idx.db.ExecContext(ctx, `DELETE FROM discussions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("discussionindex: delete %s: %w", id, err)
	}
	return nil
}

// List returns every indexed summary, most recently started first.
func (idx *Index) List(ctx context.Context) ([]Summary, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, topic, participants, current_round, active, last_seq, started_at, ended_at, priority_hint, watched
		FROM discussions
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("discussionindex: list: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var participants string
		var active, watched int
		if err := rows.Scan(&s.ID, &s.Topic, &participants, &s.CurrentRound, &active,
			&s.LastSeq, &s.StartedAt, &s.EndedAt, &s.PriorityHint, &watched); err != nil {
			return nil, fmt.Errorf("discussionindex: scan: %w", err)
		}
		s.Active = active != 0
		s.Watched = watched != 0
		if participants != "" {
			s.Participants = strings.Split(participants, ",")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns the indexed summary for id, or (Summary{}, false) if absent.
func (idx *Index) Get(ctx context.Context, id string) (Summary, bool, error) {
	var s Summary
	var participants string
	var active, watched int
	err := idx.db.QueryRowContext(ctx, `
		SELECT id, topic, participants, current_round, active, last_seq, started_at, ended_at, priority_hint, watched
		FROM discussions WHERE id = ?
	`, id).Scan(&s.ID, &s.Topic, &participants, &s.CurrentRound, &active,
		&s.LastSeq, &s.StartedAt, &s.EndedAt, &s.PriorityHint, &watched)
	if err == sql.ErrNoRows {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, fmt.Errorf("discussionindex: get %s: %w", id, err)
	}
	s.Active = active != 0
	s.Watched = watched != 0
	if participants != "" {
		s.Participants = strings.Split(participants, ",")
	}
	return s, true, nil
}

// Rebuild re-derives every row's topic/round/active/last-seq fields from
// the .jsonl logs under baseDir and drops rows for discussions no longer
// present on disk. It preserves each surviving row's Watched/PriorityHint,
// since those come from the agent runtime's scan and are not derivable
// from the log files themselves (the index is a projection, never the
// source of truth, but watcher state is the runtime's own knowledge, not
// a projection of the logs).
func (idx *Index) Rebuild(ctx context.Context, baseDir string) error {
	ids, err := discussionlog.List(baseDir)
	if err != nil {
		return fmt.Errorf("discussionindex: rebuild: %w", err)
	}
	onDisk := make(map[string]bool, len(ids))
	for _, id := range ids {
		onDisk[id] = true
	}

	existing, err := idx.List(ctx)
	if err != nil {
		return fmt.Errorf("discussionindex: rebuild: %w", err)
	}
	for _, s := range existing {
		if !onDisk[s.ID] {
			if err := idx.Delete(ctx, s.ID); err != nil {
				return err
			}
		}
	}

	for _, id := range ids {
		log := discussionlog.Open(baseDir, id)
		msgs, err := log.ReadAll()
		if err != nil {
			continue
		}
		status := discussionlog.DeriveStatus(id, msgs)
		lastSeq := 0
		for _, m := range message.EffectiveMessages(msgs) {
			if m.Seq > lastSeq {
				lastSeq = m.Seq
			}
		}

		var watched bool
		var priorityHint float64
		if prior, ok, err := idx.Get(ctx, id); err == nil && ok {
			watched = prior.Watched
			priorityHint = prior.PriorityHint
		}

		summary := Summary{
			ID:           id,
			Topic:        status.Topic,
			Participants: status.Participants,
			CurrentRound: status.CurrentRound,
			Active:       status.Active,
			LastSeq:      lastSeq,
			StartedAt:    status.StartedAt,
			EndedAt:      status.EndedAt,
			Watched:      watched,
			PriorityHint: priorityHint,
		}
		if err := idx.Upsert(ctx, summary); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
