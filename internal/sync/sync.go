// Package sync reconciles in-progress tickets with the health report
// produced by package monitor: it decides, per ticket, whether the agent's
// status needs to change and records that decision in the state store and,
// for awaiting-input and timed-out moves, in the ticket store's history
// (spec §4.6).
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/untra/operator-go/internal/monitor"
	"github.com/untra/operator-go/internal/state"
	"github.com/untra/operator-go/internal/terminal"
	"github.com/untra/operator-go/internal/ticketstore"
)

// Action is the outcome of determineAction for a single ticket.
type Action int

const (
	NoChange Action = iota
	UpdatedStatus
	MovedToAwaiting
	TimedOut
)

func (a Action) String() string {
	switch a {
	case UpdatedStatus:
		return "updated_status"
	case MovedToAwaiting:
		return "moved_to_awaiting"
	case TimedOut:
		return "timed_out"
	default:
		return "no_change"
	}
}

// Result is the outcome of one sync cycle.
type Result struct {
	Synced          int
	MovedToAwaiting []string
	TimedOut        []string
	Errors          []string
}

// Synchronizer reconciles ticket state against the most recent health report.
type Synchronizer struct {
	backend     terminal.Backend
	tickets     ticketstore.Store
	state       *state.Store
	stepTimeout time.Duration
	log         zerolog.Logger

	lastSync     time.Time
	syncInterval time.Duration
	now          func() time.Time
}

// New creates a Synchronizer.
func New(backend terminal.Backend, tickets ticketstore.Store, store *state.Store, syncInterval, stepTimeout time.Duration, log zerolog.Logger) *Synchronizer {
	s := &Synchronizer{
		backend:      backend,
		tickets:      tickets,
		state:        store,
		stepTimeout:  stepTimeout,
		syncInterval: syncInterval,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
	s.lastSync = s.now().Add(-syncInterval)
	return s
}

// ShouldSync reports whether syncInterval has elapsed since the last cycle.
func (s *Synchronizer) ShouldSync() bool {
	return s.now().Sub(s.lastSync) >= s.syncInterval
}

// TimeUntilNextSync returns how long until the next scheduled cycle.
func (s *Synchronizer) TimeUntilNextSync() time.Duration {
	elapsed := s.now().Sub(s.lastSync)
	if elapsed >= s.syncInterval {
		return 0
	}
	return s.syncInterval - elapsed
}

// SyncAll reconciles every in-progress ticket against health.
func (s *Synchronizer) SyncAll(ctx context.Context, health *monitor.HealthReport) (*Result, error) {
	s.lastSync = s.now()
	result := &Result{}

	inProgress, err := s.tickets.List("in_progress")
	if err != nil {
		return nil, fmt.Errorf("list in-progress tickets: %w", err)
	}

	for _, ticket := range inProgress {
		agent := s.state.AgentByTicket(ticket.ID)
		if agent == nil {
			continue
		}

		sessionName := ""
		if agent.SessionName != nil {
			sessionName = *agent.SessionName
		}

		action := determineAction(sessionName, health)
		if err := s.applyAction(ctx, action, ticket, agent.ID, sessionName, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", ticket.ID, err))
		}
		result.Synced++
	}

	return result, nil
}

// SyncTicket reconciles a single ticket, useful for a manual/forced sync.
func (s *Synchronizer) SyncTicket(ctx context.Context, ticketID string, health *monitor.HealthReport) (Action, error) {
	agent := s.state.AgentByTicket(ticketID)
	if agent == nil {
		return NoChange, nil
	}
	ticket, err := s.tickets.Get(ticketID)
	if err != nil {
		return NoChange, err
	}

	sessionName := ""
	if agent.SessionName != nil {
		sessionName = *agent.SessionName
	}
	action := determineAction(sessionName, health)
	result := &Result{}
	if err := s.applyAction(ctx, action, *ticket, agent.ID, sessionName, result); err != nil {
		return action, err
	}
	return action, nil
}

func (s *Synchronizer) applyAction(ctx context.Context, action Action, ticket ticketstore.Ticket, agentID, sessionName string, result *Result) error {
	switch action {
	case NoChange:
		return nil

	case MovedToAwaiting:
		if err := s.state.UpdateAgentStatus(agentID, "awaiting_input", nil); err != nil {
			return err
		}
		step := ticket.Step
		if step == "" {
			step = "initial"
		}
		if err := s.tickets.AppendHistory(ticket.ID, fmt.Sprintf("Awaiting input at step %q", step)); err != nil {
			return err
		}
		if sessionName != "" {
			_ = s.backend.ResetSilenceFlag(ctx, sessionName)
		}
		result.MovedToAwaiting = append(result.MovedToAwaiting, ticket.ID)
		s.log.Info().Str("ticket_id", ticket.ID).Str("step", step).Msg("ticket moved to awaiting")
		return nil

	case TimedOut:
		msg := "Step timed out"
		if err := s.state.UpdateAgentStatus(agentID, "awaiting_input", &msg); err != nil {
			return err
		}
		step := ticket.Step
		if step == "" {
			step = "initial"
		}
		minutes := int64(s.stepTimeout / time.Minute)
		if err := s.tickets.AppendHistory(ticket.ID, fmt.Sprintf("Step %q timed out after %d minutes", step, minutes)); err != nil {
			return err
		}
		result.TimedOut = append(result.TimedOut, ticket.ID)
		s.log.Warn().Str("ticket_id", ticket.ID).Str("step", step).Msg("step timed out")
		return nil

	case UpdatedStatus:
		return s.state.UpdateAgentStatus(agentID, "orphaned", nil)
	}
	return nil
}

// determineAction applies the priority order TimedOut > MovedToAwaiting >
// orphaned > NoChange (spec §4.6), matching the original synchronizer's
// determine_action.
func determineAction(sessionName string, health *monitor.HealthReport) Action {
	if contains(health.TimedOut, sessionName) {
		return TimedOut
	}
	if contains(health.AwaitingInput, sessionName) {
		return MovedToAwaiting
	}
	if contains(health.Orphaned, sessionName) {
		return UpdatedStatus
	}
	return NoChange
}

func contains(haystack []string, needle string) bool {
	if needle == "" {
		return false
	}
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
