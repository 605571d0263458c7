package activity

import (
	"regexp"
	"strings"
)

// PatternSet holds the compiled activity/idle regex collections for one
// tool. Activity patterns (spinners, "Thinking", progress glyphs) take
// precedence over idle patterns (bare prompt) when both match, per spec
// §4.2's tie-breaker rule.
type PatternSet struct {
	Activity []*regexp.Regexp
	Idle     []*regexp.Regexp
}

// CompilePatternSet compiles raw regex strings, silently skipping any that
// fail to compile (an invalid regex is a configuration mistake, not a fatal
// error, per spec §4.2).
func CompilePatternSet(activity, idle []string) PatternSet {
	return PatternSet{
		Activity: compileAll(activity),
		Idle:     compileAll(idle),
	}
}

func compileAll(patterns []string) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// defaultPatternSets are the built-in per-tool pattern collections.
// Activity: spinners, progress indicators, and "working" banners.
// Idle: a bare shell-style prompt or an explicit waiting banner.
var defaultPatternSets = map[string]PatternSet{
	"claude": CompilePatternSet(
		[]string{
			`[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]`,
			`(?i)\bthinking\b`,
			`(?i)\besc to interrupt\b`,
			`(?i)\bgenerating\b`,
		},
		[]string{
			`(?i)^\s*>\s*$`,
			`(?i)Human:\s*$`,
			`╭─+╮\s*$`,
		},
	),
	"gemini": CompilePatternSet(
		[]string{
			`[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]`,
			`(?i)\bwaiting for model\b`,
			`(?i)\bgenerating\b`,
		},
		[]string{
			`(?i)^\s*>\s*$`,
			`(?i)^gemini>\s*$`,
		},
	),
	"codex": CompilePatternSet(
		[]string{
			`[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]`,
			`(?i)\bworking\b`,
		},
		[]string{
			`(?i)^\s*codex>\s*$`,
			`(?i)^\s*\$\s*$`,
		},
	),
}

// PatternSetFor returns the compiled pattern set for tool, or a zero-value
// (empty) set for an unknown tool -- callers treat an unknown tool as "not
// idle" (cannot determine), per spec §4.2.
func PatternSetFor(tool string) (PatternSet, bool) {
	ps, ok := defaultPatternSets[strings.ToLower(tool)]
	return ps, ok
}

// lastLines returns the last n non-empty lines of content, in original
// order, at most n of them.
func lastLines(content string, n int) []string {
	all := strings.Split(content, "\n")
	var nonEmpty []string
	for _, l := range all {
		if strings.TrimSpace(l) != "" {
			nonEmpty = append(nonEmpty, l)
		}
	}
	if len(nonEmpty) <= n {
		return nonEmpty
	}
	return nonEmpty[len(nonEmpty)-n:]
}

func anyMatch(patterns []*regexp.Regexp, lines []string) bool {
	for _, line := range lines {
		for _, re := range patterns {
			if re.MatchString(line) {
				return true
			}
		}
	}
	return false
}
