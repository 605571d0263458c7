// Package mock implements activity.Detector as pure in-memory maps, used
// in tests (spec §4.2: "Mock detector. Pure in-memory maps from
// session-id → idle/resumed; used in tests.").
package mock

import (
	"sync"

	"github.com/untra/operator-go/internal/activity"
)

// Detector is a deterministic in-memory activity.Detector.
type Detector struct {
	mu       sync.Mutex
	idle     map[string]bool
	resumed  map[string]bool
	cleared  map[string]bool
}

func New() *Detector {
	return &Detector{
		idle:    make(map[string]bool),
		resumed: make(map[string]bool),
		cleared: make(map[string]bool),
	}
}

// SetIdle seeds the idle answer for a session.
func (d *Detector) SetIdle(sessionID string, idle bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idle[sessionID] = idle
}

// SetResumed seeds the resumed answer for a session.
func (d *Detector) SetResumed(sessionID string, resumed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumed[sessionID] = resumed
}

func (d *Detector) IsIdle(sessionID, content string, silenceFlag bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idle[sessionID]
}

func (d *Detector) HasResumed(sessionID string, wasAwaitingInput, contentChanged bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resumed[sessionID]
}

func (d *Detector) Configure(sessionID string, cfg activity.Config) {}

func (d *Detector) Clear(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleared[sessionID] = true
	delete(d.idle, sessionID)
	delete(d.resumed, sessionID)
}

// WasCleared reports whether Clear was called for sessionID -- useful in
// tests asserting the monitor disposes of per-session tracking.
func (d *Detector) WasCleared(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cleared[sessionID]
}

var _ activity.Detector = (*Detector)(nil)
