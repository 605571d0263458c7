// Package monitor implements the session health cycle: it asks the
// terminal backend which op-* sessions are alive, asks the activity
// detector whether each live session is idle or has resumed, and records
// what it saw so the synchronizer (package sync) can decide what state
// transitions to make (spec §4.5).
package monitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/untra/operator-go/internal/activity"
	"github.com/untra/operator-go/internal/state"
	"github.com/untra/operator-go/internal/terminal"
)

// HealthReport is the result of one check cycle.
type HealthReport struct {
	Checked       int
	Alive         int
	Orphaned      []string
	Changed       []string
	TimedOut      []string
	AwaitingInput []string
	Resumed       []string
}

// ReconciliationResult is the result of a startup reconciliation pass.
type ReconciliationResult struct {
	Active        int
	Orphaned      []string
	StaleSessions []string
}

// OrphanSession describes a live op-* terminal session with no matching
// agent record, for display purposes only (DetectOrphanSessions never
// mutates state).
type OrphanSession struct {
	SessionName string
	Created     time.Time
	Attached    bool
}

// SessionMonitor runs the periodic health cycle over all agents that have
// a session assigned.
type SessionMonitor struct {
	backend  terminal.Backend
	detector activity.Detector
	state    *state.Store
	log      zerolog.Logger

	checkInterval   time.Duration
	stepTimeoutSecs int64

	// failureThreshold bounds how many consecutive ListSessions failures
	// are tolerated before a cycle's "session not found" reading is
	// trusted enough to orphan agents on it. Adapted from the teacher's
	// per-source discover-failure counter (internal/monitor/health.go):
	// there it flips a source Healthy->Degraded->Failed; here the same
	// counter instead gates whether a single transient ListSessions
	// error is allowed to silently orphan every tracked agent, which is
	// what a naive empty-slice-on-error treatment would otherwise do.
	failureThreshold int

	mu                      sync.Mutex
	lastCheck               time.Time
	consecutiveListFailures int
	now                     func() time.Time
}

// Option configures a SessionMonitor at construction time.
type Option func(*SessionMonitor)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *SessionMonitor) { m.now = now }
}

// WithFailureThreshold overrides the transient-failure tolerance (default 3).
func WithFailureThreshold(n int) Option {
	return func(m *SessionMonitor) { m.failureThreshold = n }
}

// New creates a SessionMonitor.
func New(backend terminal.Backend, detector activity.Detector, store *state.Store, checkInterval time.Duration, stepTimeoutSecs int64, log zerolog.Logger, opts ...Option) *SessionMonitor {
	m := &SessionMonitor{
		backend:          backend,
		detector:         detector,
		state:            store,
		log:              log,
		checkInterval:    checkInterval,
		stepTimeoutSecs:  stepTimeoutSecs,
		failureThreshold: 3,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastCheck = m.now()
	return m
}

// ShouldCheck reports whether checkInterval has elapsed since the last cycle.
func (m *SessionMonitor) ShouldCheck() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Sub(m.lastCheck) >= m.checkInterval
}

// TimeUntilNextCheck returns how long until the next scheduled cycle.
func (m *SessionMonitor) TimeUntilNextCheck() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	elapsed := m.now().Sub(m.lastCheck)
	if elapsed >= m.checkInterval {
		return 0
	}
	return m.checkInterval - elapsed
}

// CheckHealth runs one health cycle over all agents with an assigned
// session. Uses the multi-signal cascade for awaiting-input detection:
// hook signal / content pattern match, via the activity.Detector, with the
// terminal backend's silence watchdog as a last-resort fallback read
// directly here (the detector only sees the flag value, never reads it).
func (m *SessionMonitor) CheckHealth(ctx context.Context) (*HealthReport, error) {
	m.mu.Lock()
	m.lastCheck = m.now()
	m.mu.Unlock()

	report := &HealthReport{}

	agents := m.state.AgentsWithSessions()
	report.Checked = len(agents)

	sessions, err := m.backend.ListSessions(ctx, terminal.DefaultSessionPrefix)
	if err != nil {
		m.mu.Lock()
		m.consecutiveListFailures++
		tolerated := m.consecutiveListFailures < m.failureThreshold
		m.mu.Unlock()
		if tolerated {
			m.log.Warn().Err(err).Msg("list sessions failed, tolerating as transient")
			return report, nil
		}
		m.log.Error().Err(err).Int("consecutive_failures", m.consecutiveListFailures).Msg("list sessions failing past tolerance")
	} else {
		m.mu.Lock()
		m.consecutiveListFailures = 0
		m.mu.Unlock()
	}

	active := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		active[s.Name] = struct{}{}
	}

	for _, agent := range agents {
		if agent.SessionName == nil || *agent.SessionName == "" {
			continue
		}
		sessionName := *agent.SessionName

		if _, ok := active[sessionName]; !ok {
			m.log.Warn().Str("agent_id", agent.ID).Str("session", sessionName).Msg("session not found, marking agent as orphaned")
			if err := m.state.MarkAgentOrphaned(agent.ID); err != nil {
				return nil, err
			}
			report.Orphaned = append(report.Orphaned, sessionName)
			continue
		}

		report.Alive++
		m.checkAgent(ctx, agent, sessionName, report)
	}

	return report, nil
}

func (m *SessionMonitor) checkAgent(ctx context.Context, agent state.AgentRecord, sessionName string, report *HealthReport) {
	var content string
	var contentChanged bool

	if m.backend.SupportsContentCapture() {
		if c, err := m.backend.CaptureContent(ctx, sessionName); err == nil {
			content = c
			hash := hashContent(content)
			changed, err := m.state.UpdateAgentContentHash(agent.ID, hash)
			if err == nil && changed {
				contentChanged = true
				report.Changed = append(report.Changed, sessionName)
				_ = m.state.RecordContentChange(agent.ID)
				m.log.Debug().Str("agent_id", agent.ID).Str("session", sessionName).Msg("session content changed")
			}
		}
	}

	wasAwaiting := agent.Status == "awaiting_input"
	if m.detector.HasResumed(sessionName, wasAwaiting, contentChanged) {
		report.Resumed = append(report.Resumed, sessionName)
		m.log.Info().Str("agent_id", agent.ID).Str("session", sessionName).Msg("agent resumed from awaiting state")
	} else {
		var silenceFlag bool
		if m.backend.SupportsSilenceWatchdog() {
			if flag, err := m.backend.CheckSilenceFlag(ctx, sessionName); err == nil {
				silenceFlag = flag
			}
		}
		if m.detector.IsIdle(sessionName, content, silenceFlag) {
			report.AwaitingInput = append(report.AwaitingInput, sessionName)
			m.log.Info().Str("agent_id", agent.ID).Str("session", sessionName).Msg("agent is idle, awaiting input")
		}
	}

	if m.state.IsStepTimedOut(agent.ID, m.stepTimeoutSecs) {
		report.TimedOut = append(report.TimedOut, sessionName)
		m.log.Warn().Str("agent_id", agent.ID).Str("session", sessionName).Msg("step has timed out")
	}
}

// ReconcileOnStartup compares tracked agent sessions against the live
// terminal session set once at process start, marking agents whose
// sessions died while the orchestrator wasn't running, and reporting
// sessions with no matching agent (stale).
func (m *SessionMonitor) ReconcileOnStartup(ctx context.Context) (*ReconciliationResult, error) {
	result := &ReconciliationResult{}

	sessions, err := m.backend.ListSessions(ctx, terminal.DefaultSessionPrefix)
	if err != nil {
		return nil, err
	}
	active := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		active[s.Name] = struct{}{}
	}

	agents := m.state.AgentsWithSessions()
	known := make(map[string]struct{}, len(agents))
	for _, agent := range agents {
		if agent.SessionName == nil || *agent.SessionName == "" {
			continue
		}
		known[*agent.SessionName] = struct{}{}

		if _, ok := active[*agent.SessionName]; ok {
			result.Active++
			continue
		}
		m.log.Warn().Str("agent_id", agent.ID).Str("session", *agent.SessionName).Msg("agent session not found on startup, marking as orphaned")
		if err := m.state.MarkAgentOrphaned(agent.ID); err != nil {
			return nil, err
		}
		result.Orphaned = append(result.Orphaned, *agent.SessionName)
	}

	for name := range active {
		if _, ok := known[name]; !ok {
			m.log.Warn().Str("session", name).Msg("found stale session with no matching agent")
			result.StaleSessions = append(result.StaleSessions, name)
		}
	}

	return result, nil
}

// CleanupStaleSessions kills each named session, tolerating individual
// failures (logged, not returned) so one bad session doesn't abort the rest.
func (m *SessionMonitor) CleanupStaleSessions(ctx context.Context, sessions []string) int {
	killed := 0
	for _, s := range sessions {
		if err := m.backend.KillSession(ctx, s); err != nil {
			m.log.Warn().Str("session", s).Err(err).Msg("failed to kill stale session")
			continue
		}
		m.log.Info().Str("session", s).Msg("killed stale session")
		killed++
	}
	return killed
}

// DetectOrphanSessions reports live op-* sessions with no matching agent,
// without mutating state (display-only, unlike ReconcileOnStartup).
func (m *SessionMonitor) DetectOrphanSessions(ctx context.Context) ([]OrphanSession, error) {
	sessions, err := m.backend.ListSessions(ctx, terminal.DefaultSessionPrefix)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{})
	for _, agent := range m.state.AgentsWithSessions() {
		if agent.SessionName != nil {
			known[*agent.SessionName] = struct{}{}
		}
	}

	var orphans []OrphanSession
	for _, s := range sessions {
		if _, ok := known[s.Name]; ok {
			continue
		}
		orphans = append(orphans, OrphanSession{SessionName: s.Name, Created: s.Created, Attached: s.Attached})
	}
	return orphans, nil
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
