// Package ticketstore defines the narrow interface the launcher, sync, and
// orchestrator packages use against the ticket markdown collaborator (spec §1/§6).
// The ticket markdown templating/parsing UI is explicitly out of core
// scope; this package only needs enough structure to move tickets between
// queue/in-progress/completed and to record a session-uuid per step.
package ticketstore

// Ticket is a work item externally owned by the ticket store (spec §3).
type Ticket struct {
	ID         string
	TicketType string
	Project    string
	Priority   string
	Status     string // queued | in_progress | completed
	Step       string
	Sessions   map[string]string // step name -> session-uuid
	WorktreePath string
	Branch       string
	Filename     string
	Filepath     string
}

// Store is the minimal surface the orchestrator core calls against the
// ticket collaborator.
type Store interface {
	// Get returns a single ticket by id, or nil if not found.
	Get(id string) (*Ticket, error)
	// List returns tickets in the given status ("" means all statuses).
	List(status string) ([]Ticket, error)
	// MoveToInProgress transitions a queued ticket, recording its step.
	MoveToInProgress(id, step string) error
	// MoveToCompleted transitions an in-progress ticket to completed.
	MoveToCompleted(id string) error
	// AppendHistory appends a line to the ticket's append-only history log.
	AppendHistory(id, entry string) error
	// SetSessionForStep records (or reuses) a session-uuid for a step.
	SetSessionForStep(id, step, sessionUUID string) error
	// SetWorktree records the worktree path and branch for a ticket.
	SetWorktree(id, worktreePath, branch string) error
}
