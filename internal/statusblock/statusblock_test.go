package statusblock

import (
	"strings"
	"testing"
)

func TestParseCompleteBlock(t *testing.T) {
	output := `
Some other output here...

---OPERATOR_STATUS---
status: complete
exit_signal: true
confidence: 95
files_modified: 3
tests_status: passing
error_count: 0
tasks_completed: 5
tasks_remaining: 0
summary: Implemented user authentication with JWT tokens
recommendation: Ready for code review
---END_OPERATOR_STATUS---

More output after...
`
	parsed := Parse(output)
	if parsed == nil {
		t.Fatal("expected parsed block")
	}
	if parsed.Status != "complete" {
		t.Errorf("expected complete, got %s", parsed.Status)
	}
	if !parsed.ExitSignal {
		t.Error("expected exit signal true")
	}
	if parsed.Confidence == nil || *parsed.Confidence != 95 {
		t.Errorf("unexpected confidence: %+v", parsed.Confidence)
	}
	if parsed.FilesModified == nil || *parsed.FilesModified != 3 {
		t.Errorf("unexpected files modified: %+v", parsed.FilesModified)
	}
	if parsed.TestsStatus == nil || *parsed.TestsStatus != "passing" {
		t.Errorf("unexpected tests status: %+v", parsed.TestsStatus)
	}
	if parsed.ErrorCount == nil || *parsed.ErrorCount != 0 {
		t.Errorf("unexpected error count: %+v", parsed.ErrorCount)
	}
	if parsed.TasksCompleted == nil || *parsed.TasksCompleted != 5 {
		t.Errorf("unexpected tasks completed: %+v", parsed.TasksCompleted)
	}
	if parsed.TasksRemaining == nil || *parsed.TasksRemaining != 0 {
		t.Errorf("unexpected tasks remaining: %+v", parsed.TasksRemaining)
	}
	if parsed.Summary == nil || !strings.Contains(*parsed.Summary, "JWT tokens") {
		t.Errorf("unexpected summary: %+v", parsed.Summary)
	}
	if parsed.Recommendation == nil || *parsed.Recommendation != "Ready for code review" {
		t.Errorf("unexpected recommendation: %+v", parsed.Recommendation)
	}
}

func TestParseMinimalBlock(t *testing.T) {
	output := `
---OPERATOR_STATUS---
status: in_progress
exit_signal: false
---END_OPERATOR_STATUS---
`
	parsed := Parse(output)
	if parsed == nil {
		t.Fatal("expected parsed block")
	}
	if parsed.Status != "in_progress" {
		t.Errorf("expected in_progress, got %s", parsed.Status)
	}
	if parsed.ExitSignal {
		t.Error("expected exit signal false")
	}
	if parsed.Confidence != nil {
		t.Error("expected no confidence")
	}
	if parsed.FilesModified != nil {
		t.Error("expected no files modified")
	}
}

func TestParseBlockedWithBlockers(t *testing.T) {
	output := `
---OPERATOR_STATUS---
status: blocked
exit_signal: false
blockers: Missing DATABASE_URL, Cannot connect to test database
---END_OPERATOR_STATUS---
`
	parsed := Parse(output)
	if parsed == nil {
		t.Fatal("expected parsed block")
	}
	if parsed.Status != "blocked" {
		t.Errorf("expected blocked, got %s", parsed.Status)
	}
	if len(parsed.Blockers) != 2 {
		t.Fatalf("expected 2 blockers, got %+v", parsed.Blockers)
	}
	if parsed.Blockers[0] != "Missing DATABASE_URL" || parsed.Blockers[1] != "Cannot connect to test database" {
		t.Errorf("unexpected blockers: %+v", parsed.Blockers)
	}
}

func TestParseMissingBlock(t *testing.T) {
	if Parse("No status block here") != nil {
		t.Error("expected nil for missing block")
	}
}

func TestParseIncompleteBlockNoEnd(t *testing.T) {
	output := `
---OPERATOR_STATUS---
status: complete
exit_signal: true
`
	if Parse(output) != nil {
		t.Error("expected nil without end marker")
	}
}

func TestParseIncompleteBlockNoStart(t *testing.T) {
	output := `
status: complete
exit_signal: true
---END_OPERATOR_STATUS---
`
	if Parse(output) != nil {
		t.Error("expected nil without start marker")
	}
}

func TestParseEmptyStatus(t *testing.T) {
	output := `
---OPERATOR_STATUS---
exit_signal: true
---END_OPERATOR_STATUS---
`
	if Parse(output) != nil {
		t.Error("expected nil when status is empty")
	}
}

func TestParseBoolValues(t *testing.T) {
	truthy := []string{"true", "True", "TRUE", "yes", "1", "on", "y"}
	for _, v := range truthy {
		if !parseBool(v) {
			t.Errorf("expected %q to be truthy", v)
		}
	}
	falsy := []string{"false", "False", "no", "0", "off", ""}
	for _, v := range falsy {
		if parseBool(v) {
			t.Errorf("expected %q to be falsy", v)
		}
	}
}

func TestTruncateShortString(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected short, got %s", got)
	}
}

func TestTruncateLongString(t *testing.T) {
	long := "This is a very long string that needs to be truncated"
	truncated := truncate(long, 20)
	if !strings.HasSuffix(truncated, "...") {
		t.Errorf("expected ellipsis suffix, got %s", truncated)
	}
	if len(truncated) > 23 {
		t.Errorf("expected truncated length <= 23, got %d", len(truncated))
	}
}

func TestParseListEmpty(t *testing.T) {
	if list := parseList(""); len(list) != 0 {
		t.Errorf("expected empty list, got %+v", list)
	}
}

func TestParseListSingle(t *testing.T) {
	list := parseList("item1")
	if len(list) != 1 || list[0] != "item1" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestParseListMultiple(t *testing.T) {
	list := parseList("item1, item2, item3")
	if len(list) != 3 || list[0] != "item1" || list[1] != "item2" || list[2] != "item3" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestFindLastStatusBlock(t *testing.T) {
	output := `
First block:
---OPERATOR_STATUS---
status: in_progress
exit_signal: false
---END_OPERATOR_STATUS---

Some work happened...

Second block:
---OPERATOR_STATUS---
status: complete
exit_signal: true
confidence: 100
---END_OPERATOR_STATUS---
`
	parsed := FindLast(output)
	if parsed == nil {
		t.Fatal("expected parsed block")
	}
	if parsed.Status != "complete" {
		t.Errorf("expected complete, got %s", parsed.Status)
	}
	if !parsed.ExitSignal {
		t.Error("expected exit signal true")
	}
	if parsed.Confidence == nil || *parsed.Confidence != 100 {
		t.Errorf("unexpected confidence: %+v", parsed.Confidence)
	}
}

func TestKeyNormalization(t *testing.T) {
	output := `
---OPERATOR_STATUS---
status: complete
exit-signal: true
files-modified: 5
tests-status: passing
---END_OPERATOR_STATUS---
`
	parsed := Parse(output)
	if parsed == nil {
		t.Fatal("expected parsed block")
	}
	if !parsed.ExitSignal {
		t.Error("expected exit signal true")
	}
	if parsed.FilesModified == nil || *parsed.FilesModified != 5 {
		t.Errorf("unexpected files modified: %+v", parsed.FilesModified)
	}
	if parsed.TestsStatus == nil || *parsed.TestsStatus != "passing" {
		t.Errorf("unexpected tests status: %+v", parsed.TestsStatus)
	}
}
