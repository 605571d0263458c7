// Package activity implements the multi-signal idle/resume cascade for an
// external agent process (spec §4.2): a hook-signal file (fastest), regex
// pattern matching against captured terminal content, and a multiplexer
// silence-watchdog fallback supplied by the caller.
package activity

import (
	"sync"
)

// Config carries per-session watchdog/tuning overrides.
type Config struct {
	Tool string
}

// Detector answers whether a session's agent is idle (awaiting input) and
// whether it has just resumed. It never mutates any external state on its
// own (spec §9: detectors must not drive agent-record mutations directly);
// it only answers questions the monitor asks once per health cycle.
type Detector interface {
	// IsIdle runs the hook→pattern→silence cascade. content is the most
	// recently captured terminal content (empty if capture is unsupported);
	// silenceFlag is the multiplexer's watchdog flag, read by the caller
	// from the TerminalBackend (false if unsupported).
	IsIdle(sessionID, content string, silenceFlag bool) bool

	// HasResumed reports true iff wasAwaitingInput is true and contentChanged
	// is true, and as a side effect clears any cached hook signal for the
	// session (spec §4.2 resume detection).
	HasResumed(sessionID string, wasAwaitingInput, contentChanged bool) bool

	// Configure sets backend-specific tuning for a session (e.g. which
	// tool's pattern set to use).
	Configure(sessionID string, cfg Config)

	// Clear discards any cached per-session tracking.
	Clear(sessionID string)
}

type sessionTrack struct {
	tool         string
	lastHookSeen string // last observed hook event, "" if none yet
}

// CascadeDetector is the production Detector, combining a HookManager with
// the compiled per-tool pattern sets.
type CascadeDetector struct {
	hooks *HookManager

	mu    sync.Mutex
	track map[string]*sessionTrack
}

func NewCascadeDetector(hooks *HookManager) *CascadeDetector {
	return &CascadeDetector{hooks: hooks, track: make(map[string]*sessionTrack)}
}

func (d *CascadeDetector) trackFor(sessionID string) *sessionTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.track[sessionID]
	if !ok {
		t = &sessionTrack{}
		d.track[sessionID] = t
	}
	return t
}

func (d *CascadeDetector) Configure(sessionID string, cfg Config) {
	t := d.trackFor(sessionID)
	d.mu.Lock()
	t.tool = cfg.Tool
	d.mu.Unlock()
}

func (d *CascadeDetector) Clear(sessionID string) {
	d.mu.Lock()
	delete(d.track, sessionID)
	d.mu.Unlock()
}

// IsIdle implements the three-signal cascade in priority order.
func (d *CascadeDetector) IsIdle(sessionID, content string, silenceFlag bool) bool {
	t := d.trackFor(sessionID)

	// Signal 1: hook signal file.
	if sig := d.hooks.CheckSignal(sessionID); sig != nil {
		d.mu.Lock()
		t.lastHookSeen = sig.Event
		d.mu.Unlock()
		return sig.Event == "stop"
	}

	// Signal 2: pattern match on captured content.
	d.mu.Lock()
	tool := t.tool
	d.mu.Unlock()
	if ps, ok := PatternSetFor(tool); ok {
		activityLines := lastLines(content, 10)
		if anyMatch(ps.Activity, activityLines) {
			return false
		}
		idleLines := lastLines(content, 3)
		if anyMatch(ps.Idle, idleLines) {
			return true
		}
	}

	// Signal 3: multiplexer silence watchdog.
	if silenceFlag {
		return true
	}

	// Unknown tool or no signal fired: cannot determine -> not idle.
	return false
}

// HasResumed clears the cached hook signal on a genuine resume transition.
func (d *CascadeDetector) HasResumed(sessionID string, wasAwaitingInput, contentChanged bool) bool {
	if !wasAwaitingInput || !contentChanged {
		return false
	}
	t := d.trackFor(sessionID)
	d.mu.Lock()
	t.lastHookSeen = ""
	d.mu.Unlock()
	_ = d.hooks.ClearSignal(sessionID)
	return true
}

var _ Detector = (*CascadeDetector)(nil)
