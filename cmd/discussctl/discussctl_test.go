package main

import (
	"testing"

	"github.com/steveyegge/discussion-agent/internal/discussionlog"
)

func TestPrintStatusLineDoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	log, _, err := discussionlog.Create(dir, "topic", []string{"claude", "codex"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	status, err := log.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	// printStatusLine writes to stdout; we only assert it runs without
	// error on a freshly created discussion.
	printStatusLine(log.ID(), status)
}

func TestDispatchShellLineStatusTailFollowupEnd(t *testing.T) {
	dir := t.TempDir()
	log, _, err := discussionlog.Create(dir, "topic", []string{"claude", "codex"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := log.ID()

	if err := dispatchShellLine(log, id, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := dispatchShellLine(log, id, "tail"); err != nil {
		t.Fatalf("tail: %v", err)
	}
	if err := dispatchShellLine(log, id, "followup please clarify"); err != nil {
		t.Fatalf("followup: %v", err)
	}
	if err := dispatchShellLine(log, id, "lock"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := dispatchShellLine(log, id, "end we are done"); err != nil {
		t.Fatalf("end: %v", err)
	}

	msgs, err := log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected start+followup+end = 3 records, got %d", len(msgs))
	}

	status, err := log.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Active {
		t.Errorf("expected discussion to be ended after 'end' command")
	}
}

func TestDispatchShellLineUnknownCommand(t *testing.T) {
	dir := t.TempDir()
	log, _, err := discussionlog.Create(dir, "topic", []string{"claude"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := dispatchShellLine(log, log.ID(), "bogus"); err == nil {
		t.Error("expected error for unknown shell command")
	}
}

func TestDispatchShellLineFollowupRequiresContent(t *testing.T) {
	dir := t.TempDir()
	log, _, err := discussionlog.Create(dir, "topic", []string{"claude"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := dispatchShellLine(log, log.ID(), "followup"); err == nil {
		t.Error("expected usage error for followup with no content")
	}
}
