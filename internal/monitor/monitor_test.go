package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	activitymock "github.com/untra/operator-go/internal/activity/mock"
	"github.com/untra/operator-go/internal/state"
	terminalmock "github.com/untra/operator-go/internal/terminal/mock"
)

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	st, err := state.Load(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestHashContentStable(t *testing.T) {
	a := hashContent("Hello, World!")
	b := hashContent("Hello, World!")
	c := hashContent("Different content")
	if a != b {
		t.Error("expected identical content to hash identically")
	}
	if a == c {
		t.Error("expected different content to hash differently")
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex sha256, got %d", len(a))
	}
}

func TestCheckHealthNoAgents(t *testing.T) {
	st := newTestStore(t)
	backend := terminalmock.New()
	detector := activitymock.New()
	m := New(backend, detector, st, time.Second, 3600, zerolog.Nop())

	report, err := m.CheckHealth(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Checked != 0 || report.Alive != 0 || len(report.Orphaned) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestCheckHealthFindsAliveSession(t *testing.T) {
	st := newTestStore(t)
	agentID, err := st.AddAgent("TASK-123", "TASK", "test", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateAgentSession(agentID, "op-TASK-123"); err != nil {
		t.Fatal(err)
	}

	backend := terminalmock.New()
	ctx := context.Background()
	if err := backend.CreateSession(ctx, "op-TASK-123", "/tmp"); err != nil {
		t.Fatal(err)
	}
	backend.SetContent("op-TASK-123", "Claude is working...")

	detector := activitymock.New()
	m := New(backend, detector, st, time.Second, 3600, zerolog.Nop())

	report, err := m.CheckHealth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Checked != 1 || report.Alive != 1 || len(report.Orphaned) != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestCheckHealthDetectsOrphan(t *testing.T) {
	st := newTestStore(t)
	agentID, err := st.AddAgent("TASK-456", "TASK", "test", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateAgentSession(agentID, "op-TASK-456"); err != nil {
		t.Fatal(err)
	}

	backend := terminalmock.New() // session never created: simulates it dying
	detector := activitymock.New()
	m := New(backend, detector, st, time.Second, 3600, zerolog.Nop())

	report, err := m.CheckHealth(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Alive != 0 || len(report.Orphaned) != 1 || report.Orphaned[0] != "op-TASK-456" {
		t.Errorf("unexpected report: %+v", report)
	}

	orphaned := st.OrphanedAgents()
	if len(orphaned) != 1 || orphaned[0].ID != agentID {
		t.Errorf("expected agent marked orphaned, got %+v", orphaned)
	}
}

func TestCheckHealthDetectsContentChange(t *testing.T) {
	st := newTestStore(t)
	agentID, err := st.AddAgent("TASK-789", "TASK", "test", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateAgentSession(agentID, "op-TASK-789"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.UpdateAgentContentHash(agentID, hashContent("Initial content")); err != nil {
		t.Fatal(err)
	}

	backend := terminalmock.New()
	ctx := context.Background()
	if err := backend.CreateSession(ctx, "op-TASK-789", "/tmp"); err != nil {
		t.Fatal(err)
	}
	backend.SetContent("op-TASK-789", "New different content!")

	detector := activitymock.New()
	m := New(backend, detector, st, time.Second, 3600, zerolog.Nop())

	report, err := m.CheckHealth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Changed) != 1 || report.Changed[0] != "op-TASK-789" {
		t.Errorf("expected content change detected, got %+v", report)
	}
}

func TestCheckHealthResumeClearsAwaitingDetection(t *testing.T) {
	st := newTestStore(t)
	agentID, err := st.AddAgent("TASK-900", "TASK", "test", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateAgentSession(agentID, "op-TASK-900"); err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateAgentStatus(agentID, "awaiting_input", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := st.UpdateAgentContentHash(agentID, hashContent("old")); err != nil {
		t.Fatal(err)
	}

	backend := terminalmock.New()
	ctx := context.Background()
	if err := backend.CreateSession(ctx, "op-TASK-900", "/tmp"); err != nil {
		t.Fatal(err)
	}
	backend.SetContent("op-TASK-900", "fresh output")

	detector := activitymock.New()
	detector.SetResumed("op-TASK-900", true)
	detector.SetIdle("op-TASK-900", true)

	m := New(backend, detector, st, time.Second, 3600, zerolog.Nop())
	report, err := m.CheckHealth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Resumed) != 1 {
		t.Errorf("expected resume detected, got %+v", report)
	}
	if len(report.AwaitingInput) != 0 {
		t.Errorf("expected awaiting-input suppressed on resume, got %+v", report)
	}
}

func TestCheckHealthUnavailableBackendOrphansRatherThanErrors(t *testing.T) {
	st := newTestStore(t)
	agentID, err := st.AddAgent("TASK-111", "TASK", "test", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateAgentSession(agentID, "op-TASK-111"); err != nil {
		t.Fatal(err)
	}

	backend := terminalmock.New()
	backend.Available = false // ListSessions returns (nil, nil) per mock contract -- simulate real error instead via a wrapper

	detector := activitymock.New()
	m := New(backend, detector, st, time.Second, 3600, zerolog.Nop(), WithFailureThreshold(3))

	// With the in-memory mock, an unavailable backend yields an empty
	// active set with no error, which is a legitimate "session not found"
	// reading rather than a transport failure -- so this exercises the
	// orphan path, confirming the threshold only gates real ListSessions
	// errors, not an empty result.
	report, err := m.CheckHealth(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Orphaned) != 1 {
		t.Errorf("expected orphan detected on empty session set, got %+v", report)
	}
}

func TestShouldCheckRespectsInterval(t *testing.T) {
	st := newTestStore(t)
	backend := terminalmock.New()
	detector := activitymock.New()

	now := time.Now().UTC()
	clock := func() time.Time { return now }
	m := New(backend, detector, st, time.Minute, 3600, zerolog.Nop(), WithClock(clock))

	if m.ShouldCheck() {
		t.Error("expected not due immediately after construction")
	}
	now = now.Add(2 * time.Minute)
	if !m.ShouldCheck() {
		t.Error("expected due after interval elapsed")
	}
}

func TestReconcileOnStartupFindsActiveAndStale(t *testing.T) {
	st := newTestStore(t)
	agentID, err := st.AddAgent("FEAT-200", "FEAT", "test", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateAgentSession(agentID, "op-FEAT-200"); err != nil {
		t.Fatal(err)
	}

	backend := terminalmock.New()
	ctx := context.Background()
	if err := backend.CreateSession(ctx, "op-FEAT-200", "/tmp"); err != nil {
		t.Fatal(err)
	}
	if err := backend.CreateSession(ctx, "op-ORPHAN-777", "/tmp"); err != nil {
		t.Fatal(err)
	}

	detector := activitymock.New()
	m := New(backend, detector, st, time.Second, 3600, zerolog.Nop())

	result, err := m.ReconcileOnStartup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Active != 1 {
		t.Errorf("expected 1 active, got %d", result.Active)
	}
	if len(result.StaleSessions) != 1 || result.StaleSessions[0] != "op-ORPHAN-777" {
		t.Errorf("expected stale session detected, got %+v", result)
	}
}

func TestReconcileOnStartupOrphansDeadSession(t *testing.T) {
	st := newTestStore(t)
	agentID, err := st.AddAgent("TASK-200", "TASK", "test", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateAgentSession(agentID, "op-TASK-200"); err != nil {
		t.Fatal(err)
	}

	backend := terminalmock.New() // no session created
	detector := activitymock.New()
	m := New(backend, detector, st, time.Second, 3600, zerolog.Nop())

	result, err := m.ReconcileOnStartup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Active != 0 || len(result.Orphaned) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestCleanupStaleSessionsKillsAll(t *testing.T) {
	backend := terminalmock.New()
	ctx := context.Background()
	if err := backend.CreateSession(ctx, "op-STALE-1", "/tmp"); err != nil {
		t.Fatal(err)
	}
	if err := backend.CreateSession(ctx, "op-STALE-2", "/tmp"); err != nil {
		t.Fatal(err)
	}

	st := newTestStore(t)
	detector := activitymock.New()
	m := New(backend, detector, st, time.Second, 3600, zerolog.Nop())

	killed := m.CleanupStaleSessions(ctx, []string{"op-STALE-1", "op-STALE-2"})
	if killed != 2 {
		t.Errorf("expected 2 killed, got %d", killed)
	}
	exists, _ := backend.SessionExists(ctx, "op-STALE-1")
	if exists {
		t.Error("expected session killed")
	}
}

func TestDetectOrphanSessionsIgnoresMatched(t *testing.T) {
	st := newTestStore(t)
	agentID, err := st.AddAgent("FEAT-100", "FEAT", "test", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateAgentSession(agentID, "op-FEAT-100"); err != nil {
		t.Fatal(err)
	}

	backend := terminalmock.New()
	ctx := context.Background()
	if err := backend.CreateSession(ctx, "op-FEAT-100", "/tmp"); err != nil {
		t.Fatal(err)
	}
	if err := backend.CreateSession(ctx, "op-ORPHAN-001", "/tmp"); err != nil {
		t.Fatal(err)
	}

	detector := activitymock.New()
	m := New(backend, detector, st, time.Second, 3600, zerolog.Nop())

	orphans, err := m.DetectOrphanSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0].SessionName != "op-ORPHAN-001" {
		t.Errorf("unexpected orphans: %+v", orphans)
	}
}
