package notify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogNotifierEmitsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	n.AgentStarted("FEAT-1", "demo")
	n.AgentRelaunched("FEAT-1")
	n.AgentOrphaned("FEAT-1", "op-FEAT-1")
	n.AwaitingInput("FEAT-1")
	n.TimedOut("FEAT-1", "plan")
	n.PrCreated("FEAT-1", "https://example.invalid/pr/1")
	n.PrMerged("FEAT-1", 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected 7 log lines, got %d:\n%s", len(lines), buf.String())
	}
}
