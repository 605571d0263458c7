package terminal

import (
	"regexp"
	"testing"
	"unicode/utf8"
)

var allowedChars = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

func TestSanitizeSessionNamePreservesLength(t *testing.T) {
	cases := []string{
		"TASK-100",
		"feat/add-widget",
		"weird chars!@#$%^&*()",
		"",
		"already-clean_123",
		"unicode-✓-mark",
	}
	for _, in := range cases {
		out := SanitizeSessionName(in)
		if !allowedChars.MatchString(out) {
			t.Errorf("SanitizeSessionName(%q) = %q, contains disallowed chars", in, out)
		}
		if len(out) != utf8.RuneCountInString(in) {
			t.Errorf("SanitizeSessionName(%q) = %q, length %d, want one char per input rune (%d)", in, out, len(out), utf8.RuneCountInString(in))
		}
	}
}

func TestSanitizeSessionNameDeterministic(t *testing.T) {
	in := "TASK-100/weird input"
	a := SanitizeSessionName(in)
	b := SanitizeSessionName(in)
	if a != b {
		t.Errorf("SanitizeSessionName not deterministic: %q vs %q", a, b)
	}
}

func TestSessionNameForTicketHasPrefix(t *testing.T) {
	name := SessionNameForTicket("TASK-100")
	if name != "op-TASK-100" {
		t.Errorf("SessionNameForTicket = %q, want op-TASK-100", name)
	}
}

func TestSessionNameForTicketSanitizesAfterPrefix(t *testing.T) {
	name := SessionNameForTicket("feat/123 test")
	want := "op-feat-123-test"
	if name != want {
		t.Errorf("SessionNameForTicket = %q, want %q", name, want)
	}
}
