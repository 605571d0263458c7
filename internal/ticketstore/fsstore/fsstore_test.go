package fsstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleTicket = `---
id: FEAT-001
status: queued
step: ""
priority: normal
project: demo
ticket_type: FEAT
---
# Add widget support

Some description body.
`

func writeSample(t *testing.T, root, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, dir, name), []byte(sampleTicket), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeSampleWithID(t *testing.T, root, dir, name, id string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
		t.Fatal(err)
	}
	content := sampleTicket[:strings.Index(sampleTicket, "id: FEAT-001")] +
		"id: " + id +
		sampleTicket[strings.Index(sampleTicket, "id: FEAT-001")+len("id: FEAT-001"):]
	if err := os.WriteFile(filepath.Join(root, dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGetFindsTicketAcrossDirs(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	writeSample(t, root, queueDir, "FEAT-001.md")

	ticket, err := s.Get("FEAT-001")
	if err != nil {
		t.Fatal(err)
	}
	if ticket == nil {
		t.Fatal("expected ticket to be found")
	}
	if ticket.Status != "queued" || ticket.Project != "demo" {
		t.Errorf("unexpected ticket: %+v", ticket)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	ticket, err := s.Get("NOPE-001")
	if err != nil {
		t.Fatal(err)
	}
	if ticket != nil {
		t.Error("expected nil for missing ticket")
	}
}

func TestMoveToInProgressRelocatesFile(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	writeSample(t, root, queueDir, "FEAT-001.md")

	if err := s.MoveToInProgress("FEAT-001", "plan"); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(root, queueDir, "FEAT-001.md")); !os.IsNotExist(err) {
		t.Error("expected ticket removed from queue directory")
	}
	ticket, err := s.Get("FEAT-001")
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Status != "in_progress" || ticket.Step != "plan" {
		t.Errorf("unexpected ticket after move: %+v", ticket)
	}
}

func TestMoveToCompletedFromInProgress(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	writeSample(t, root, inProgressDir, "FEAT-001.md")

	if err := s.MoveToCompleted("FEAT-001"); err != nil {
		t.Fatal(err)
	}
	ticket, err := s.Get("FEAT-001")
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Status != "completed" {
		t.Errorf("expected status completed, got %q", ticket.Status)
	}
}

func TestAppendHistoryCreatesSectionThenAppends(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	writeSample(t, root, queueDir, "FEAT-001.md")

	if err := s.AppendHistory("FEAT-001", "Launched agent"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendHistory("FEAT-001", "Completed plan step"); err != nil {
		t.Fatal(err)
	}

	doc, err := s.findByID("FEAT-001")
	if err != nil {
		t.Fatal(err)
	}
	lines := historyLines(doc.body)
	if len(lines) != 2 || lines[0] != "Launched agent" || lines[1] != "Completed plan step" {
		t.Errorf("unexpected history lines: %v", lines)
	}
}

func TestSetSessionForStepDoesNotOverwriteExisting(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	writeSample(t, root, queueDir, "FEAT-001.md")

	if err := s.SetSessionForStep("FEAT-001", "plan", "uuid-a"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSessionForStep("FEAT-001", "plan", "uuid-b"); err != nil {
		t.Fatal(err)
	}

	ticket, err := s.Get("FEAT-001")
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Sessions["plan"] != "uuid-a" {
		t.Errorf("expected existing session-uuid preserved, got %q", ticket.Sessions["plan"])
	}
}

func TestSetWorktree(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	writeSample(t, root, queueDir, "FEAT-001.md")

	if err := s.SetWorktree("FEAT-001", "/tmp/wt/feat-001", "feat/001"); err != nil {
		t.Fatal(err)
	}

	ticket, err := s.Get("FEAT-001")
	if err != nil {
		t.Fatal(err)
	}
	if ticket.WorktreePath != "/tmp/wt/feat-001" || ticket.Branch != "feat/001" {
		t.Errorf("unexpected ticket after SetWorktree: %+v", ticket)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	writeSample(t, root, queueDir, "FEAT-001.md")
	writeSampleWithID(t, root, inProgressDir, "FEAT-002.md", "FEAT-002")

	queued, err := s.List("queued")
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 1 || queued[0].ID != "FEAT-001" {
		t.Errorf("unexpected queued list: %+v", queued)
	}

	all, err := s.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 tickets across all dirs, got %d", len(all))
	}
}
