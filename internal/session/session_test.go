package session

import (
	"context"
	"testing"

	activitymock "github.com/untra/operator-go/internal/activity/mock"
	terminalmock "github.com/untra/operator-go/internal/terminal/mock"
)

func TestCaptureAndCheckIdleUsesBackendContent(t *testing.T) {
	backend := terminalmock.New()
	ctx := context.Background()
	if err := backend.CreateSession(ctx, "op-feat-001", "/tmp"); err != nil {
		t.Fatal(err)
	}
	backend.SetContent("op-feat-001", "done\n> ")

	detector := activitymock.New()
	detector.SetIdle("sess-uuid-1", true)

	cs := New("op-feat-001", "sess-uuid-1", "claude", backend, detector)

	idle, content, err := cs.CaptureAndCheckIdle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !idle {
		t.Error("expected idle=true from mock detector")
	}
	if content != "done\n> " {
		t.Errorf("expected captured content, got %q", content)
	}
}

func TestKillClearsDetector(t *testing.T) {
	backend := terminalmock.New()
	ctx := context.Background()
	if err := backend.CreateSession(ctx, "op-feat-002", "/tmp"); err != nil {
		t.Fatal(err)
	}

	detector := activitymock.New()
	cs := New("op-feat-002", "sess-uuid-2", "claude", backend, detector)

	if err := cs.Kill(ctx); err != nil {
		t.Fatal(err)
	}
	if !detector.WasCleared("sess-uuid-2") {
		t.Error("expected detector state cleared on kill")
	}
}

func TestHasResumedDelegatesToDetector(t *testing.T) {
	backend := terminalmock.New()
	detector := activitymock.New()
	detector.SetResumed("sess-uuid-3", true)

	cs := New("op-feat-003", "sess-uuid-3", "claude", backend, detector)
	if !cs.HasResumed(true, true) {
		t.Error("expected HasResumed to delegate to mock detector")
	}
}
