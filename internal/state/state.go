// Package state persists the orchestrator's view of running and completed
// agents (spec §4.4). A Store is single-writer: every mutation serializes
// the whole document back to disk before returning.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/untra/operator-go/internal/ids"
)

// AgentRecord is one tracked agent session.
type AgentRecord struct {
	ID                string          `json:"id"`
	TicketID          string          `json:"ticket_id"`
	TicketType        string          `json:"ticket_type"`
	Project           string          `json:"project"`
	Status            string          `json:"status"` // running, awaiting_input, completing, orphaned
	StartedAt         time.Time       `json:"started_at"`
	LastActivity      time.Time       `json:"last_activity"`
	LastMessage       *string         `json:"last_message,omitempty"`
	Paired            bool            `json:"paired"`
	SessionName       *string         `json:"session_name,omitempty"`
	ContentHash       *string         `json:"content_hash,omitempty"`
	CurrentStep       *string         `json:"current_step,omitempty"`
	StepStartedAt     *time.Time      `json:"step_started_at,omitempty"`
	LastContentChange *time.Time      `json:"last_content_change,omitempty"`
	PrURL             *string         `json:"pr_url,omitempty"`
	PrNumber          *uint64         `json:"pr_number,omitempty"`
	GithubRepo        *string         `json:"github_repo,omitempty"`
	PrStatus          *string         `json:"pr_status,omitempty"`
	CompletedSteps    []string        `json:"completed_steps"`
	LlmTool           *string         `json:"llm_tool,omitempty"`
	LaunchMode        *string         `json:"launch_mode,omitempty"`
	ReviewState       *string         `json:"review_state,omitempty"`
	DevServerPid      *uint32         `json:"dev_server_pid,omitempty"`
	WorktreePath      *string         `json:"worktree_path,omitempty"`
}

// CompletedTicket is a terminal record kept for the activity feed.
type CompletedTicket struct {
	TicketID      string    `json:"ticket_id"`
	TicketType    string    `json:"ticket_type"`
	Project       string    `json:"project"`
	Summary       string    `json:"summary"`
	CompletedAt   time.Time `json:"completed_at"`
	PrURL         *string   `json:"pr_url,omitempty"`
	OutputTickets []string  `json:"output_tickets"`
}

// OrchestratorState is the on-disk document. ProjectLlmStats and
// ProjectCollectionPrefs are kept opaque (valid JSON, uninterpreted by the
// core) per spec §3's "opaque blob" treatment of per-project preferences
// this orchestrator doesn't itself act on.
type OrchestratorState struct {
	Paused                 bool                       `json:"paused"`
	Agents                 []AgentRecord              `json:"agents"`
	Completed              []CompletedTicket          `json:"completed"`
	ProjectLlmStats        map[string]json.RawMessage `json:"project_llm_stats,omitempty"`
	ProjectCollectionPrefs map[string]json.RawMessage `json:"project_collection_prefs,omitempty"`
}

// DefaultCompletedCap bounds the completed list (FIFO eviction), spec §4.4.
const DefaultCompletedCap = 100

// Clock abstracts time.Now for deterministic tests.
type Clock = ids.Clock

// Store is the single-writer, JSON-persisted orchestrator state.
type Store struct {
	mu           sync.Mutex
	path         string
	completedCap int
	clock        Clock
	idgen        ids.Generator
	doc          OrchestratorState
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithClock overrides the store's time source (tests use a fixed clock).
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithGenerator overrides the store's agent-id generator (tests use a
// deterministic sequence instead of random UUIDs).
func WithGenerator(g ids.Generator) Option {
	return func(s *Store) { s.idgen = g }
}

// WithCompletedCap overrides DefaultCompletedCap.
func WithCompletedCap(n int) Option {
	return func(s *Store) { s.completedCap = n }
}

// Load reads state.json from stateDir, creating an empty document if the
// file does not yet exist. stateDir is created if missing.
func Load(stateDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	s := &Store{
		path:         filepath.Join(stateDir, "state.json"),
		completedCap: DefaultCompletedCap,
		clock:        ids.SystemClock{},
		idgen:        ids.UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.doc = OrchestratorState{
			Agents:    []AgentRecord{},
			Completed: []CompletedTicket{},
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("state file %s is empty", s.path)
	}

	var doc OrchestratorState
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	s.doc = doc
	return s, nil
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Snapshot returns a deep-enough copy of the current document for callers
// that only need to read (e.g. the monitor's health cycle).
func (s *Store) Snapshot() OrchestratorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	agents := make([]AgentRecord, len(s.doc.Agents))
	copy(agents, s.doc.Agents)
	completed := make([]CompletedTicket, len(s.doc.Completed))
	copy(completed, s.doc.Completed)
	return OrchestratorState{
		Paused:    s.doc.Paused,
		Agents:    agents,
		Completed: completed,
	}
}

// SetPaused toggles the global pause flag.
func (s *Store) SetPaused(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Paused = paused
	return s.saveLocked()
}

func (s *Store) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Paused
}

// AddAgent appends a new running agent record and persists it.
func (s *Store) AddAgent(ticketID, ticketType, project string, paired bool) (string, error) {
	return s.AddAgentWithOptions(ticketID, ticketType, project, paired, nil, nil)
}

// AddAgentWithOptions appends a new agent with launcher-selected tool/mode.
func (s *Store) AddAgentWithOptions(ticketID, ticketType, project string, paired bool, llmTool, launchMode *string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.idgen.AgentID()
	now := s.clock.Now()

	s.doc.Agents = append(s.doc.Agents, AgentRecord{
		ID:                id,
		TicketID:          ticketID,
		TicketType:        ticketType,
		Project:           project,
		Status:            "running",
		StartedAt:         now,
		LastActivity:      now,
		Paired:            paired,
		CompletedSteps:    []string{},
		LastContentChange: &now,
		LlmTool:           llmTool,
		LaunchMode:        launchMode,
	})

	if err := s.saveLocked(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) findAgent(agentID string) *AgentRecord {
	for i := range s.doc.Agents {
		if s.doc.Agents[i].ID == agentID {
			return &s.doc.Agents[i]
		}
	}
	return nil
}

func (s *Store) findAgentBySession(sessionName string) *AgentRecord {
	for i := range s.doc.Agents {
		a := &s.doc.Agents[i]
		if a.SessionName != nil && *a.SessionName == sessionName {
			return a
		}
	}
	return nil
}

func (s *Store) findAgentByTicket(ticketID string) *AgentRecord {
	for i := range s.doc.Agents {
		if s.doc.Agents[i].TicketID == ticketID {
			return &s.doc.Agents[i]
		}
	}
	return nil
}

// UpdateAgentStatus sets status and, if message is non-nil, last_message.
func (s *Store) UpdateAgentStatus(agentID, status string, message *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAgent(agentID); a != nil {
		a.Status = status
		a.LastActivity = s.clock.Now()
		if message != nil {
			a.LastMessage = message
		}
	}
	return s.saveLocked()
}

// CompleteAgent moves an agent from the active list to completed, evicting
// the oldest completion beyond the configured cap.
func (s *Store) CompleteAgent(agentID, summary string, prURL *string, outputTickets []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.doc.Agents {
		if s.doc.Agents[i].ID == agentID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return s.saveLocked()
	}

	agent := s.doc.Agents[idx]
	s.doc.Agents = append(s.doc.Agents[:idx], s.doc.Agents[idx+1:]...)

	s.doc.Completed = append(s.doc.Completed, CompletedTicket{
		TicketID:      agent.TicketID,
		TicketType:    agent.TicketType,
		Project:       agent.Project,
		Summary:       summary,
		CompletedAt:   s.clock.Now(),
		PrURL:         prURL,
		OutputTickets: outputTickets,
	})

	if len(s.doc.Completed) > s.completedCap {
		s.doc.Completed = s.doc.Completed[len(s.doc.Completed)-s.completedCap:]
	}

	return s.saveLocked()
}

// RemoveAgent drops an agent record outright (no completion recorded).
func (s *Store) RemoveAgent(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.doc.Agents[:0]
	for _, a := range s.doc.Agents {
		if a.ID != agentID {
			out = append(out, a)
		}
	}
	s.doc.Agents = out
	return s.saveLocked()
}

// RemoveAgentBySession removes and returns the agent bound to sessionName,
// if any — used during stale-session cleanup.
func (s *Store) RemoveAgentBySession(sessionName string) (*AgentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.doc.Agents {
		a := s.doc.Agents[i]
		if a.SessionName != nil && *a.SessionName == sessionName {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil
	}
	removed := s.doc.Agents[idx]
	s.doc.Agents = append(s.doc.Agents[:idx], s.doc.Agents[idx+1:]...)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return &removed, nil
}

// UpdateAgentSession records the tmux/backend session name for an agent.
func (s *Store) UpdateAgentSession(agentID, sessionName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAgent(agentID); a != nil {
		a.SessionName = &sessionName
		a.LastActivity = s.clock.Now()
	}
	return s.saveLocked()
}

// UpdateAgentWorktreePath records the git worktree path for an agent.
func (s *Store) UpdateAgentWorktreePath(agentID, worktreePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAgent(agentID); a != nil {
		a.WorktreePath = &worktreePath
	}
	return s.saveLocked()
}

// UpdateAgentContentHash records a new content hash, returning whether it
// changed from the previous value. A save only happens when it changed.
func (s *Store) UpdateAgentContentHash(agentID, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findAgent(agentID)
	if a == nil {
		return false, nil
	}
	changed := a.ContentHash == nil || *a.ContentHash != hash
	if changed {
		a.ContentHash = &hash
		a.LastActivity = s.clock.Now()
		if err := s.saveLocked(); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// AgentBySession looks up an agent by its backend session name.
func (s *Store) AgentBySession(sessionName string) *AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findAgentBySession(sessionName)
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// AgentByTicket looks up an agent by its ticket ID.
func (s *Store) AgentByTicket(ticketID string) *AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findAgentByTicket(ticketID)
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// AgentByID looks up an agent by its own ID.
func (s *Store) AgentByID(agentID string) *AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findAgent(agentID)
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// MarkAgentOrphaned flags an agent whose backend session died unexpectedly.
func (s *Store) MarkAgentOrphaned(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAgent(agentID); a != nil {
		a.Status = "orphaned"
		a.LastActivity = s.clock.Now()
	}
	return s.saveLocked()
}

// RunningAgents returns agents with status running or awaiting_input.
func (s *Store) RunningAgents() []AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AgentRecord
	for _, a := range s.doc.Agents {
		if a.Status == "running" || a.Status == "awaiting_input" {
			out = append(out, a)
		}
	}
	return out
}

// StalledAgents returns agents awaiting input.
func (s *Store) StalledAgents() []AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AgentRecord
	for _, a := range s.doc.Agents {
		if a.Status == "awaiting_input" {
			out = append(out, a)
		}
	}
	return out
}

// AgentsWithSessions returns non-orphaned agents that have a bound session
// name — the health-check candidate set.
func (s *Store) AgentsWithSessions() []AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AgentRecord
	for _, a := range s.doc.Agents {
		if a.SessionName != nil && a.Status != "orphaned" {
			out = append(out, a)
		}
	}
	return out
}

// OrphanedAgents returns all agents currently flagged orphaned.
func (s *Store) OrphanedAgents() []AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AgentRecord
	for _, a := range s.doc.Agents {
		if a.Status == "orphaned" {
			out = append(out, a)
		}
	}
	return out
}

// IsProjectBusy reports whether a project has a currently-running agent.
// Only status "running" counts, matching the original's strict check —
// an awaiting_input agent does not block a second launch.
func (s *Store) IsProjectBusy(project string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.doc.Agents {
		if a.Project == project && a.Status == "running" {
			return true
		}
	}
	return false
}

// UpdateAgentStep sets the current workflow step and resets its timer.
func (s *Store) UpdateAgentStep(agentID, step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if a := s.findAgent(agentID); a != nil {
		a.CurrentStep = &step
		a.StepStartedAt = &now
		a.LastActivity = now
		a.LastContentChange = &now
	}
	return s.saveLocked()
}

// RecordContentChange updates last_content_change/last_activity without
// touching the step timer.
func (s *Store) RecordContentChange(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if a := s.findAgent(agentID); a != nil {
		a.LastContentChange = &now
		a.LastActivity = now
	}
	return s.saveLocked()
}

// IsStepTimedOut reports whether the agent's current step has exceeded
// timeoutSecs, using a strict greater-than comparison.
func (s *Store) IsStepTimedOut(agentID string, timeoutSecs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findAgent(agentID)
	if a == nil || a.StepStartedAt == nil {
		return false
	}
	elapsed := s.clock.Now().Sub(*a.StepStartedAt)
	return elapsed.Seconds() > float64(timeoutSecs)
}

// CompleteStep appends step to completed_steps if not already present.
func (s *Store) CompleteStep(agentID, step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAgent(agentID); a != nil {
		found := false
		for _, existing := range a.CompletedSteps {
			if existing == step {
				found = true
				break
			}
		}
		if !found {
			a.CompletedSteps = append(a.CompletedSteps, step)
		}
		a.LastActivity = s.clock.Now()
	}
	return s.saveLocked()
}

// UpdateAgentPR records a newly-created PR's identity and marks it open.
func (s *Store) UpdateAgentPR(agentID, prURL string, prNumber uint64, githubRepo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAgent(agentID); a != nil {
		a.PrURL = &prURL
		a.PrNumber = &prNumber
		a.GithubRepo = &githubRepo
		open := "open"
		a.PrStatus = &open
		a.LastActivity = s.clock.Now()
	}
	return s.saveLocked()
}

// UpdatePrStatus records a new PR status string for an agent.
func (s *Store) UpdatePrStatus(agentID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAgent(agentID); a != nil {
		a.PrStatus = &status
		a.LastActivity = s.clock.Now()
	}
	return s.saveLocked()
}

// AgentsWithPRs returns agents that have both a PR number and repo set.
func (s *Store) AgentsWithPRs() []AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AgentRecord
	for _, a := range s.doc.Agents {
		if a.PrNumber != nil && a.GithubRepo != nil {
			out = append(out, a)
		}
	}
	return out
}

// SetAgentReviewState sets the review_state metadata for an awaiting_input
// agent.
func (s *Store) SetAgentReviewState(agentID, reviewState string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAgent(agentID); a != nil {
		a.ReviewState = &reviewState
		a.LastActivity = s.clock.Now()
	}
	return s.saveLocked()
}

// ClearReviewState clears review_state and dev_server_pid, used when
// resuming from awaiting_input.
func (s *Store) ClearReviewState(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAgent(agentID); a != nil {
		a.ReviewState = nil
		a.DevServerPid = nil
		a.LastActivity = s.clock.Now()
	}
	return s.saveLocked()
}

// SetAgentDevServerPid records the dev-server process id started during
// a visual-review step, for later liveness probing/cleanup.
func (s *Store) SetAgentDevServerPid(agentID string, pid uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAgent(agentID); a != nil {
		a.DevServerPid = &pid
		a.LastActivity = s.clock.Now()
	}
	return s.saveLocked()
}

func (s *Store) agentsAwaitingReview(reviewState string) []AgentRecord {
	var out []AgentRecord
	for _, a := range s.doc.Agents {
		if a.Status == "awaiting_input" && a.ReviewState != nil && *a.ReviewState == reviewState {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) AgentsAwaitingPlanReview() []AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentsAwaitingReview("pending_plan")
}

func (s *Store) AgentsAwaitingVisualReview() []AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentsAwaitingReview("pending_visual")
}

func (s *Store) AgentsAwaitingPrMerge() []AgentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentsAwaitingReview("pending_pr_merge")
}

// RecentCompletions returns completed tickets within the last `hours`.
func (s *Store) RecentCompletions(hours int64) []CompletedTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.clock.Now().Add(-time.Duration(hours) * time.Hour)
	var out []CompletedTicket
	for _, c := range s.doc.Completed {
		if c.CompletedAt.After(cutoff) {
			out = append(out, c)
		}
	}
	return out
}
