package tmux

import "testing"

func TestVersionAtLeast(t *testing.T) {
	tests := []struct {
		have, want string
		ok         bool
	}{
		{"3.3a", "2.1", true},
		{"2.1", "2.1", true},
		{"2.0", "2.1", false},
		{"1.9", "2.1", false},
		{"3.0", "2.1", true},
		{"2.1a", "2.1", true},
	}
	for _, tt := range tests {
		if got := versionAtLeast(tt.have, tt.want); got != tt.ok {
			t.Errorf("versionAtLeast(%q, %q) = %v, want %v", tt.have, tt.want, got, tt.ok)
		}
	}
}

func TestSplitVersion(t *testing.T) {
	tests := []struct {
		in           string
		major, minor int
	}{
		{"2.1", 2, 1},
		{"3.3a", 3, 3},
		{"3", 3, 0},
		{"2.9c", 2, 9},
	}
	for _, tt := range tests {
		major, minor := splitVersion(tt.in)
		if major != tt.major || minor != tt.minor {
			t.Errorf("splitVersion(%q) = (%d, %d), want (%d, %d)", tt.in, major, minor, tt.major, tt.minor)
		}
	}
}

func TestParseSessions(t *testing.T) {
	out := "operator-FEAT-001\t1700000000\t1\noperator-FEAT-002\t1700000100\t0\nother-window\t1700000200\t0\n"

	sessions := parseSessions(out, "operator-")
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions after prefix filter, got %d", len(sessions))
	}
	if sessions[0].Name != "operator-FEAT-001" || !sessions[0].Attached {
		t.Errorf("unexpected first session: %+v", sessions[0])
	}
	if sessions[1].Name != "operator-FEAT-002" || sessions[1].Attached {
		t.Errorf("unexpected second session: %+v", sessions[1])
	}
}

func TestParseSessions_EmptyAndMalformed(t *testing.T) {
	if got := parseSessions("", ""); got != nil {
		t.Errorf("empty input: expected nil, got %v", got)
	}

	out := "missing-fields\t123\nvalid\t1700000000\t1\n"
	sessions := parseSessions(out, "")
	if len(sessions) != 1 || sessions[0].Name != "valid" {
		t.Errorf("malformed input: expected only the well-formed line, got %+v", sessions)
	}
}

func TestParseSessions_NoPrefixFilter(t *testing.T) {
	out := "a\t1700000000\t0\nb\t1700000000\t0\n"
	sessions := parseSessions(out, "")
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions with no prefix filter, got %d", len(sessions))
	}
}
