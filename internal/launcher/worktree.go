package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// setupWorktree creates an isolated git worktree for ticketID under
// projectPath/.worktrees/<ticket-id>, on a fresh branch. When projectPath
// is not a git repository, or worktrees are disabled, it returns
// projectPath unchanged with created=false -- per spec.md's "fallback to
// the project path for non-git projects" and "fatal on a git-project
// worktree failure" rules.
func setupWorktree(ctx context.Context, projectPath, ticketID string, enabled bool) (workingDir, branch string, created bool, err error) {
	if !enabled {
		return projectPath, "", false, nil
	}
	if !isGitRepo(projectPath) {
		return projectPath, "", false, nil
	}

	branch = branchNameForTicket(ticketID)
	worktreeDir := filepath.Join(projectPath, ".worktrees", sanitizeForPath(ticketID))

	if _, statErr := os.Stat(worktreeDir); statErr == nil {
		// Already set up (relaunch reusing it).
		return worktreeDir, branch, true, nil
	}

	if err := os.MkdirAll(filepath.Dir(worktreeDir), 0o755); err != nil {
		return "", "", false, fmt.Errorf("create worktree parent directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "-C", projectPath, "worktree", "add", "-b", branch, worktreeDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", "", false, fmt.Errorf("git worktree add failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	return worktreeDir, branch, true, nil
}

func isGitRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && (info.IsDir() || info.Mode().IsRegular())
}

func branchNameForTicket(ticketID string) string {
	return "agent/" + sanitizeForPath(ticketID)
}

func sanitizeForPath(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}

// settle pauses briefly after session creation before sending keystrokes,
// matching the teacher's "shell needs to finish initializing" delay.
func settle(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
