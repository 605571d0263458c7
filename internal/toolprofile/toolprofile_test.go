package toolprofile

import (
	"strings"
	"testing"
)

func TestLoadAllToolConfigs(t *testing.T) {
	profiles, err := LoadAll("")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("expected 3 embedded profiles, got %d", len(profiles))
	}

	reg := NewRegistry(profiles)
	for _, name := range []string{"claude", "gemini", "codex"} {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("missing profile for %q", name)
		}
	}
}

func TestBuildCommandClaude(t *testing.T) {
	profiles, _ := LoadAll("")
	reg := NewRegistry(profiles)
	p, ok := reg.Get("claude")
	if !ok {
		t.Fatal("claude profile not found")
	}

	cmd := p.BuildCommand("opus", "abc-123", "/tmp/prompt.txt")
	if !strings.Contains(cmd, "--model opus") {
		t.Errorf("expected model flag in command, got %q", cmd)
	}
	if !strings.Contains(cmd, "--session-id abc-123") {
		t.Errorf("expected session id in command, got %q", cmd)
	}
	if !strings.Contains(cmd, "/tmp/prompt.txt") {
		t.Errorf("expected prompt file path in command, got %q", cmd)
	}
}

func TestBuildCommandCodex(t *testing.T) {
	profiles, _ := LoadAll("")
	reg := NewRegistry(profiles)
	p, ok := reg.Get("codex")
	if !ok {
		t.Fatal("codex profile not found")
	}

	cmd := p.BuildCommand("gpt-4o", "xyz-789", "/tmp/prompt.txt")
	if !strings.Contains(cmd, "-m gpt-4o") {
		t.Errorf("expected -m gpt-4o in command, got %q", cmd)
	}
	if !strings.Contains(cmd, "--resume xyz-789") {
		t.Errorf("expected --resume xyz-789 in command, got %q", cmd)
	}
}

func TestBuildCommandNoModelFlagWhenMappingEmpty(t *testing.T) {
	p := Profile{
		ToolName:        "bare",
		ArgMapping:      ArgMapping{},
		CommandTemplate: "bare {{model_flag}}run {{prompt_file}}",
	}
	cmd := p.BuildCommand("whatever", "", "/tmp/p.txt")
	if strings.Contains(cmd, "whatever") {
		t.Errorf("model should not appear when arg_mapping.model is empty, got %q", cmd)
	}
	if cmd != "bare run /tmp/p.txt" {
		t.Errorf("unexpected command: %q", cmd)
	}
}

func TestDisplayName(t *testing.T) {
	p := Profile{ToolName: "claude", DisplayNameRaw: "Claude Code"}
	if p.DisplayName() != "Claude Code" {
		t.Errorf("expected display name override, got %q", p.DisplayName())
	}

	bare := Profile{ToolName: "claude"}
	if bare.DisplayName() != "claude" {
		t.Errorf("expected fallback to tool name, got %q", bare.DisplayName())
	}
}

func TestWithYolo(t *testing.T) {
	p := Profile{YoloFlags: []string{"--dangerously-skip-permissions"}}
	got := p.WithYolo("claude --session-id x")
	if !strings.Contains(got, "--dangerously-skip-permissions") {
		t.Errorf("expected yolo flag appended, got %q", got)
	}

	none := Profile{}
	if none.WithYolo("claude x") != "claude x" {
		t.Error("expected no change when no yolo flags configured")
	}
}

func TestInsertResumeFlag(t *testing.T) {
	p := Profile{}
	got := p.InsertResumeFlag("claude --session-id abc -p \"hi\"", "--resume", "abc-123")
	want := "claude --resume abc-123 --session-id abc -p \"hi\""
	if got != want {
		t.Errorf("InsertResumeFlag:\n got  %q\n want %q", got, want)
	}

	if p.InsertResumeFlag("claude x", "", "abc") != "claude x" {
		t.Error("expected no-op when resumeFlag is empty")
	}
}
