// Package tmux implements terminal.Backend by shelling out to the tmux
// binary.
package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/untra/operator-go/internal/terminal"
)

// MinVersion is the minimum tmux version the backend requires.
const MinVersion = "2.1"

// Backend shells out to the tmux CLI. It is safe for concurrent use; tmux
// itself serializes access to the server socket.
type Backend struct {
	bin    string
	prefix string
}

// New locates the tmux binary via PATH. Callers should call CheckAvailable
// before relying on the backend.
func New() *Backend {
	bin, _ := exec.LookPath("tmux")
	if bin == "" {
		bin = "tmux"
	}
	return &Backend{bin: bin, prefix: terminal.DefaultSessionPrefix}
}

func (b *Backend) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, b.bin, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return out.String(), fmt.Errorf("tmux %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out.String(), nil
}

func (b *Backend) CheckAvailable(ctx context.Context) (terminal.VersionInfo, error) {
	out, err := b.run(ctx, "-V")
	if err != nil {
		return terminal.VersionInfo{}, fmt.Errorf("%w: %v", terminal.ErrNotAvailable, err)
	}
	version := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "tmux "))
	if !versionAtLeast(version, MinVersion) {
		return terminal.VersionInfo{}, fmt.Errorf("%w: tmux %s older than required %s", terminal.ErrNotAvailable, version, MinVersion)
	}
	return terminal.VersionInfo{Name: "tmux", Version: version}, nil
}

func versionAtLeast(have, want string) bool {
	haveMajor, haveMinor := splitVersion(have)
	wantMajor, wantMinor := splitVersion(want)
	if haveMajor != wantMajor {
		return haveMajor > wantMajor
	}
	return haveMinor >= wantMinor
}

func splitVersion(v string) (int, int) {
	v = strings.TrimRight(v, "abcdefghijklmnopqrstuvwxyz")
	parts := strings.SplitN(v, ".", 2)
	major, _ := strconv.Atoi(parts[0])
	minor := 0
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(strings.TrimRight(parts[1], "abcdefghijklmnopqrstuvwxyz"))
	}
	return major, minor
}

// SessionExists performs an exact-match query via list-sessions, because
// tmux's own `has-session -t name` does prefix/fnmatch-like matching that
// can false-positive; a substring match here would be a spec violation.
func (b *Backend) SessionExists(ctx context.Context, name string) (bool, error) {
	out, err := b.run(ctx, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if strings.Contains(err.Error(), "no server running") {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", terminal.ErrNotAvailable, err)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) CreateSession(ctx context.Context, name, workingDir string) error {
	exists, err := b.SessionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return terminal.ErrSessionExists
	}
	if _, err := b.run(ctx, "new-session", "-d", "-s", name, "-c", workingDir); err != nil {
		return &terminal.CreationFailedError{Session: name, Detail: "new-session", Err: err}
	}
	return nil
}

func (b *Backend) SendCommand(ctx context.Context, name, command string) error {
	exists, err := b.SessionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return terminal.ErrSessionNotFound
	}
	if _, err := b.run(ctx, "send-keys", "-t", name, command, "Enter"); err != nil {
		return &terminal.CommandFailedError{Session: name, Detail: "send-keys", Err: err}
	}
	return nil
}

func (b *Backend) KillSession(ctx context.Context, name string) error {
	exists, err := b.SessionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return terminal.ErrSessionNotFound
	}
	_, err = b.run(ctx, "kill-session", "-t", name)
	return err
}

func (b *Backend) ListSessions(ctx context.Context, prefix string) ([]terminal.Session, error) {
	out, err := b.run(ctx, "list-sessions", "-F", "#{session_name}\t#{session_created}\t#{session_attached}")
	if err != nil {
		// Matches spec §4.1: unavailable backend returns empty, not error,
		// so startup reconciliation does not crash on a healthy system
		// that simply has no tmux server yet.
		return nil, nil
	}
	return parseSessions(out, prefix), nil
}

// parseSessions parses list-sessions -F output ("name\tcreated\tattached"
// per line), filtering to prefix and skipping malformed lines.
func parseSessions(out, prefix string) []terminal.Session {
	var sessions []terminal.Session
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			continue
		}
		if prefix != "" && !strings.HasPrefix(fields[0], prefix) {
			continue
		}
		createdUnix, _ := strconv.ParseInt(fields[1], 10, 64)
		sessions = append(sessions, terminal.Session{
			Name:     fields[0],
			Created:  time.Unix(createdUnix, 0),
			Attached: fields[2] == "1",
		})
	}
	return sessions
}

func (b *Backend) FocusSession(ctx context.Context, name string) error {
	_, err := b.run(ctx, "attach-session", "-t", name)
	return err
}

func (b *Backend) SupportsContentCapture() bool { return true }

func (b *Backend) CaptureContent(ctx context.Context, name string) (string, error) {
	out, err := b.run(ctx, "capture-pane", "-t", name, "-p")
	if err != nil {
		return "", fmt.Errorf("%w: %v", terminal.ErrSessionNotFound, err)
	}
	return out, nil
}

func (b *Backend) SupportsSilenceWatchdog() bool { return true }

// SetMonitorSilence arms tmux's own no-output watchdog on the window
// (monitor-silence 0 disables it).
func (b *Backend) SetMonitorSilence(ctx context.Context, name string, secs int) error {
	if secs < 0 {
		secs = 0
	}
	_, err := b.run(ctx, "set-window-option", "-t", name, "monitor-silence", strconv.Itoa(secs))
	return err
}

// CheckSilenceFlag reads tmux's window_silence_flag format variable, which
// tmux itself sets once a window has gone quiet for monitor-silence seconds.
func (b *Backend) CheckSilenceFlag(ctx context.Context, name string) (bool, error) {
	out, err := b.run(ctx, "display-message", "-p", "-t", name, "#{window_silence_flag}")
	if err != nil {
		return false, fmt.Errorf("%w: %v", terminal.ErrSessionNotFound, err)
	}
	return strings.TrimSpace(out) == "1", nil
}

// ResetSilenceFlag clears window_silence_flag by toggling monitor-silence
// off and back on, the only way tmux exposes to clear it without waiting
// out another silence period.
func (b *Backend) ResetSilenceFlag(ctx context.Context, name string) error {
	out, err := b.run(ctx, "display-message", "-p", "-t", name, "#{monitor-silence}")
	if err != nil {
		return fmt.Errorf("%w: %v", terminal.ErrSessionNotFound, err)
	}
	current := strings.TrimSpace(out)
	if _, err := b.run(ctx, "set-window-option", "-t", name, "monitor-silence", "0"); err != nil {
		return err
	}
	_, err = b.run(ctx, "set-window-option", "-t", name, "monitor-silence", current)
	return err
}

var _ terminal.Backend = (*Backend)(nil)
