package launcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/untra/operator-go/internal/config"
	"github.com/untra/operator-go/internal/state"
	terminalmock "github.com/untra/operator-go/internal/terminal/mock"
	"github.com/untra/operator-go/internal/ticketstore/fsstore"
	"github.com/untra/operator-go/internal/toolprofile"
)

func newTestLauncher(t *testing.T) (*Launcher, *terminalmock.Backend, *fsstore.Store, string) {
	t.Helper()
	root := t.TempDir()
	ticketsRoot := filepath.Join(root, "tickets")
	projectsRoot := filepath.Join(root, "projects")
	signalDir := filepath.Join(root, "signals")
	if err := os.MkdirAll(filepath.Join(projectsRoot, "demo"), 0o755); err != nil {
		t.Fatal(err)
	}

	tickets, err := fsstore.New(ticketsRoot)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ticketsRoot, "queue", "FEAT-001.md"), []byte(`---
id: FEAT-001
status: queued
step: ""
priority: normal
project: demo
ticket_type: FEAT
---
# Sample ticket
`), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := state.Load(filepath.Join(root, "state"))
	if err != nil {
		t.Fatal(err)
	}

	profiles, err := toolprofile.LoadAll("")
	if err != nil {
		t.Fatal(err)
	}
	reg := toolprofile.NewRegistry(profiles)

	backend := terminalmock.New()

	cfg := config.LauncherConfig{
		DefaultTool:      "claude",
		SettlingDelay:    0,
		SilenceThreshold: 10 * time.Second,
		WorktreeEnabled:  false,
	}
	paths := config.PathsConfig{
		ProjectsRoot: projectsRoot,
		SignalDir:    signalDir,
	}

	l := New(cfg, paths, backend, tickets, st, reg, zerolog.Nop())
	return l, backend, tickets, ticketsRoot
}

func TestLaunchCreatesSessionAndRegistersAgent(t *testing.T) {
	l, backend, _, _ := newTestLauncher(t)
	ctx := context.Background()

	agentID, err := l.Launch(ctx, "FEAT-001", Options{})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if agentID == "" {
		t.Fatal("expected non-empty agent id")
	}

	exists, err := backend.SessionExists(ctx, "op-FEAT-001")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("expected terminal session to be created")
	}

	a := l.state.AgentByTicket("FEAT-001")
	if a == nil {
		t.Fatal("expected agent registered in state")
	}
	if a.SessionName == nil || *a.SessionName != "op-FEAT-001" {
		t.Errorf("unexpected session name: %+v", a.SessionName)
	}
	if a.LlmTool == nil || *a.LlmTool != "claude" {
		t.Errorf("expected llm_tool claude, got %+v", a.LlmTool)
	}
}

func TestLaunchMovesTicketToInProgress(t *testing.T) {
	l, _, tickets, _ := newTestLauncher(t)
	ctx := context.Background()

	if _, err := l.Launch(ctx, "FEAT-001", Options{}); err != nil {
		t.Fatal(err)
	}

	ticket, err := tickets.Get("FEAT-001")
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Status != "in_progress" {
		t.Errorf("expected ticket moved to in_progress, got %q", ticket.Status)
	}
}

func TestLaunchFailsFastWhenProjectPathMissing(t *testing.T) {
	l, _, _, ticketsRoot := newTestLauncher(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(ticketsRoot, "queue", "FEAT-002.md"), []byte(`---
id: FEAT-002
status: queued
step: ""
priority: normal
project: ghost-project
ticket_type: FEAT
---
# Ticket with a project that was never created
`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Launch(ctx, "FEAT-002", Options{}); err == nil {
		t.Fatal("expected an error for a nonexistent project path, got nil")
	} else if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected a does-not-exist error, got: %v", err)
	}
}

func TestLaunchFailsWhenSessionAlreadyExists(t *testing.T) {
	l, backend, _, _ := newTestLauncher(t)
	ctx := context.Background()
	if err := backend.CreateSession(ctx, "op-FEAT-001", "/tmp"); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Launch(ctx, "FEAT-001", Options{}); err == nil {
		t.Error("expected error when session already exists")
	}
}

func TestBuildCommandAppliesYoloFlags(t *testing.T) {
	l, _, _, _ := newTestLauncher(t)
	profile, _ := l.tools.Get("claude")
	cmd := l.buildCommand(profile, "sonnet", "uuid-1", "/tmp/p.txt", "/tmp/wd", "", Options{YoloMode: true})
	if !strings.Contains(cmd, "--dangerously-skip-permissions") {
		t.Errorf("expected yolo flag in command: %q", cmd)
	}
}

func TestBuildCommandInsertsResumeFlag(t *testing.T) {
	l, _, _, _ := newTestLauncher(t)
	profile, _ := l.tools.Get("claude")
	cmd := l.buildCommand(profile, "sonnet", "uuid-1", "/tmp/p.txt", "/tmp/wd", "resume-uuid", Options{})
	if !strings.Contains(cmd, "--resume resume-uuid") {
		t.Errorf("expected resume flag inserted: %q", cmd)
	}
}
