// Package notify defines the narrow notification surface the orchestrator
// calls on agent lifecycle transitions (spec §4.10). Real delivery
// (desktop notifications, macOS alerts) is out of scope for this module; the
// default implementation logs via zerolog at the same density the rest of
// the orchestrator does, one line per notable transition.
package notify

import "github.com/rs/zerolog"

// Notifier is notified of agent and PR lifecycle events worth surfacing to
// an operator.
type Notifier interface {
	AgentStarted(ticketID, project string)
	AgentRelaunched(ticketID string)
	AgentOrphaned(ticketID, sessionName string)
	AwaitingInput(ticketID string)
	TimedOut(ticketID, step string)
	PrCreated(ticketID, url string)
	PrMerged(ticketID string, prNumber int64)
}

// LogNotifier is the default Notifier: it logs every event and delivers
// nothing further.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AgentStarted(ticketID, project string) {
	n.log.Info().Str("ticket_id", ticketID).Str("project", project).Msg("agent started")
}

func (n *LogNotifier) AgentRelaunched(ticketID string) {
	n.log.Info().Str("ticket_id", ticketID).Msg("agent relaunched")
}

func (n *LogNotifier) AgentOrphaned(ticketID, sessionName string) {
	n.log.Warn().Str("ticket_id", ticketID).Str("session", sessionName).Msg("agent orphaned")
}

func (n *LogNotifier) AwaitingInput(ticketID string) {
	n.log.Info().Str("ticket_id", ticketID).Msg("agent awaiting input")
}

func (n *LogNotifier) TimedOut(ticketID, step string) {
	n.log.Warn().Str("ticket_id", ticketID).Str("step", step).Msg("agent step timed out")
}

func (n *LogNotifier) PrCreated(ticketID, url string) {
	n.log.Info().Str("ticket_id", ticketID).Str("url", url).Msg("pull request created")
}

func (n *LogNotifier) PrMerged(ticketID string, prNumber int64) {
	n.log.Info().Str("ticket_id", ticketID).Int64("pr_number", prNumber).Msg("pull request merged")
}

var _ Notifier = (*LogNotifier)(nil)
