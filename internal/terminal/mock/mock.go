// Package mock implements terminal.Backend entirely in memory, for tests
// and the orchestrator's --mock demo mode.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/untra/operator-go/internal/terminal"
)

type session struct {
	name       string
	workingDir string
	created    time.Time
	attached   bool
	content    string
	silenceSec int
	silenceSet bool
}

// Backend is a pure in-memory terminal.Backend. Safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	sessions map[string]*session
	// Available, when false, makes CheckAvailable and ListSessions behave
	// like an unreachable backend (empty list, no error on ListSessions).
	Available bool
}

func New() *Backend {
	return &Backend{sessions: make(map[string]*session), Available: true}
}

func (b *Backend) CheckAvailable(ctx context.Context) (terminal.VersionInfo, error) {
	if !b.Available {
		return terminal.VersionInfo{}, terminal.ErrNotAvailable
	}
	return terminal.VersionInfo{Name: "mock", Version: "1.0"}, nil
}

func (b *Backend) SessionExists(ctx context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[name]
	return ok, nil
}

func (b *Backend) CreateSession(ctx context.Context, name, workingDir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[name]; ok {
		return terminal.ErrSessionExists
	}
	b.sessions[name] = &session{name: name, workingDir: workingDir, created: time.Now().UTC()}
	return nil
}

func (b *Backend) SendCommand(ctx context.Context, name, command string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[name]
	if !ok {
		return terminal.ErrSessionNotFound
	}
	s.content += command + "\n"
	return nil
}

func (b *Backend) KillSession(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[name]; !ok {
		return terminal.ErrSessionNotFound
	}
	delete(b.sessions, name)
	return nil
}

func (b *Backend) ListSessions(ctx context.Context, prefix string) ([]terminal.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.Available {
		return nil, nil
	}
	var out []terminal.Session
	for _, s := range b.sessions {
		if prefix != "" && !strings.HasPrefix(s.name, prefix) {
			continue
		}
		out = append(out, terminal.Session{Name: s.name, Created: s.created, Attached: s.attached})
	}
	return out, nil
}

func (b *Backend) FocusSession(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[name]
	if !ok {
		return terminal.ErrSessionNotFound
	}
	s.attached = true
	return nil
}

func (b *Backend) SupportsContentCapture() bool { return true }

func (b *Backend) CaptureContent(ctx context.Context, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[name]
	if !ok {
		return "", terminal.ErrSessionNotFound
	}
	return s.content, nil
}

func (b *Backend) SupportsSilenceWatchdog() bool { return true }

func (b *Backend) SetMonitorSilence(ctx context.Context, name string, secs int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[name]
	if !ok {
		return terminal.ErrSessionNotFound
	}
	s.silenceSec = secs
	if secs <= 0 {
		s.silenceSet = false
	}
	return nil
}

func (b *Backend) CheckSilenceFlag(ctx context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[name]
	if !ok {
		return false, terminal.ErrSessionNotFound
	}
	return s.silenceSet, nil
}

func (b *Backend) ResetSilenceFlag(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[name]
	if !ok {
		return terminal.ErrSessionNotFound
	}
	s.silenceSet = false
	return nil
}

// SetContent is a test/demo helper to simulate new terminal output, which
// in turn lets the mock's silence flag be armed by a driving goroutine (the
// mock never arms it on its own -- tests set it directly via SetSilenceFlag).
func (b *Backend) SetContent(name, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[name]; ok {
		s.content = content
	}
}

// SetSilenceFlag is a test helper to simulate the watchdog tripping.
func (b *Backend) SetSilenceFlag(name string, flag bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[name]; ok {
		s.silenceSet = flag
	}
}

var _ terminal.Backend = (*Backend)(nil)
