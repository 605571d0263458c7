// Package session composes a terminal backend, an activity detector, and
// the session-uuid that names the LLM-side conversation for a single
// agent (spec §3 "ComposedSession").
package session

import (
	"context"
	"fmt"

	"github.com/untra/operator-go/internal/activity"
	"github.com/untra/operator-go/internal/terminal"
)

// ComposedSession binds a backend session name to its activity detector
// and its session-uuid. It is transient — callers construct one whenever
// they need to act on an agent's terminal, rather than persisting it (the
// durable reference is AgentRecord.session_name in internal/state).
type ComposedSession struct {
	Name        string
	SessionUUID string
	Tool        string

	backend  terminal.Backend
	detector activity.Detector
}

// New binds the given backend session name to detector/tool configuration.
func New(name, sessionUUID, tool string, backend terminal.Backend, detector activity.Detector) *ComposedSession {
	detector.Configure(sessionUUID, activity.Config{Tool: tool})
	return &ComposedSession{
		Name:        name,
		SessionUUID: sessionUUID,
		Tool:        tool,
		backend:     backend,
		detector:    detector,
	}
}

// Send delivers a command to the backing terminal session.
func (c *ComposedSession) Send(ctx context.Context, command string) error {
	return c.backend.SendCommand(ctx, c.Name, command)
}

// Kill destroys the backing terminal session and clears detector state.
func (c *ComposedSession) Kill(ctx context.Context) error {
	defer c.detector.Clear(c.SessionUUID)
	return c.backend.KillSession(ctx, c.Name)
}

// CaptureAndCheckIdle captures the session's content (when the backend
// supports capture) and runs it through the activity cascade. When
// content capture is unsupported, content is empty and only the hook
// signal / silence-flag layers of the cascade can answer.
func (c *ComposedSession) CaptureAndCheckIdle(ctx context.Context) (idle bool, content string, err error) {
	if c.backend.SupportsContentCapture() {
		content, err = c.backend.CaptureContent(ctx, c.Name)
		if err != nil {
			return false, "", fmt.Errorf("capture content for %s: %w", c.Name, err)
		}
	}

	silenceFlag := false
	if c.backend.SupportsSilenceWatchdog() {
		silenceFlag, err = c.backend.CheckSilenceFlag(ctx, c.Name)
		if err != nil {
			return false, content, fmt.Errorf("check silence flag for %s: %w", c.Name, err)
		}
	}

	return c.detector.IsIdle(c.SessionUUID, content, silenceFlag), content, nil
}

// HasResumed reports whether the agent has resumed after being in
// awaiting_input, clearing cached detector state as a side effect when it
// has (see activity.Detector.HasResumed).
func (c *ComposedSession) HasResumed(wasAwaitingInput, contentChanged bool) bool {
	return c.detector.HasResumed(c.SessionUUID, wasAwaitingInput, contentChanged)
}
