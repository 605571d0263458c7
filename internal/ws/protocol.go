// Package ws implements the optional observability feed (spec §4.12): a
// WebSocket broadcaster that mirrors orchestrator state (agents, PR
// lifecycle events, health cycle summaries) to connected dashboard clients,
// plus a small HTTP surface for snapshot polling and session focus. It is
// strictly read-only from a client's perspective — no command traffic flows
// back over the socket.
package ws

import "github.com/untra/operator-go/internal/state"

// MessageType discriminates the WSMessage payload.
type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgDelta    MessageType = "delta"
	MsgPrEvent  MessageType = "pr_event"
	MsgHealth   MessageType = "health"
	MsgError    MessageType = "error"
)

// WSMessage is the envelope for every message sent to a connected client.
// Seq is a per-broadcaster monotonic counter, letting a client detect a
// dropped message without the server tracking per-client acks.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

// SnapshotPayload is the full current state, sent once to every newly
// connected client and on the snapshot ticker thereafter.
type SnapshotPayload struct {
	Agents []state.AgentRecord `json:"agents"`
	Health *HealthPayload      `json:"health,omitempty"`
}

// DeltaPayload carries only what changed since the last flush, coalescing
// every update queued within one throttle window into a single message.
type DeltaPayload struct {
	Updates []state.AgentRecord `json:"updates"`
	Removed []string            `json:"removed"`
}

// PrEventPayload mirrors a pr.StatusEvent for display purposes.
type PrEventPayload struct {
	Kind           string `json:"kind"`
	TicketID       string `json:"ticket_id"`
	PrNumber       int64  `json:"pr_number"`
	MergeCommitSHA string `json:"merge_commit_sha,omitempty"`
}

// HealthPayload mirrors monitor.HealthReport for display purposes.
type HealthPayload struct {
	Checked       int      `json:"checked"`
	Alive         int      `json:"alive"`
	Orphaned      []string `json:"orphaned"`
	Changed       []string `json:"changed"`
	TimedOut      []string `json:"timed_out"`
	AwaitingInput []string `json:"awaiting_input"`
	Resumed       []string `json:"resumed"`
}

// ErrorPayload reports a server-side condition worth surfacing to clients
// (e.g. the snapshot store became unreadable).
type ErrorPayload struct {
	Message string `json:"message"`
}
