package pr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval matches the original PR monitor's 60-second cadence.
const DefaultPollInterval = 60 * time.Second

// TrackedPr is the monitor's cached view of one PR's last-observed state.
type TrackedPr struct {
	Repo           RepoInfo
	PrNumber       int64
	LastState      PrState
	TicketID       string
	IsDraft        bool
	MergeCommitSHA string
}

// EventKind distinguishes PrStatusEvent variants.
type EventKind int

const (
	EventMerged EventKind = iota
	EventClosed
	EventApproved
	EventChangesRequested
	EventReadyToMerge
	EventReadyForReview
)

func (k EventKind) String() string {
	switch k {
	case EventMerged:
		return "merged"
	case EventClosed:
		return "closed"
	case EventApproved:
		return "approved"
	case EventChangesRequested:
		return "changes_requested"
	case EventReadyToMerge:
		return "ready_to_merge"
	case EventReadyForReview:
		return "ready_for_review"
	default:
		return "unknown"
	}
}

// StatusEvent is emitted whenever a tracked PR's state transitions.
type StatusEvent struct {
	Kind           EventKind
	TicketID       string
	PrNumber       int64
	MergeCommitSHA string
}

// PrKey formats the tracked-PR map key used by Monitor, exactly matching
// the original's pr_key format.
func PrKey(repo RepoInfo, number int64) string {
	return fmt.Sprintf("%s#%d", repo.FullName(), number)
}

// Monitor polls tracked PRs on an interval and emits StatusEvents on state
// transitions (spec §4.7), grounded on the original PrMonitorService.
type Monitor struct {
	service      Service
	pollInterval time.Duration
	log          zerolog.Logger

	mu      sync.RWMutex
	tracked map[string]TrackedPr

	events chan<- StatusEvent
}

// NewMonitor creates a Monitor with the default 60s poll interval. events
// receives every emitted StatusEvent; callers should give it enough buffer
// or drain it promptly, since Run blocks on a full channel.
func NewMonitor(service Service, events chan<- StatusEvent, log zerolog.Logger) *Monitor {
	return &Monitor{
		service:      service,
		pollInterval: DefaultPollInterval,
		log:          log,
		tracked:      make(map[string]TrackedPr),
		events:       events,
	}
}

// WithPollInterval overrides the default poll cadence.
func (m *Monitor) WithPollInterval(interval time.Duration) *Monitor {
	m.pollInterval = interval
	return m
}

// TrackedCount returns the number of PRs currently tracked.
func (m *Monitor) TrackedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tracked)
}

// IsTracking reports whether the given PR is currently tracked.
func (m *Monitor) IsTracking(repo RepoInfo, number int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tracked[PrKey(repo, number)]
	return ok
}

// TrackPR fetches the PR's current state and begins tracking it for
// subsequent polls.
func (m *Monitor) TrackPR(ctx context.Context, repo RepoInfo, number int64, ticketID string) error {
	info, err := m.service.GetPR(ctx, repo, number)
	if err != nil {
		return fmt.Errorf("fetch initial pr state: %w", err)
	}

	tracked := TrackedPr{
		Repo:           repo,
		PrNumber:       number,
		LastState:      info.State,
		TicketID:       ticketID,
		IsDraft:        info.IsDraft,
		MergeCommitSHA: info.MergeCommitSHA,
	}

	key := PrKey(repo, number)
	m.mu.Lock()
	m.tracked[key] = tracked
	m.mu.Unlock()

	m.log.Info().Str("pr", key).Msg("now tracking pull request")
	return nil
}

// UntrackPR stops tracking the given PR.
func (m *Monitor) UntrackPR(repo RepoInfo, number int64) {
	key := PrKey(repo, number)
	m.mu.Lock()
	_, existed := m.tracked[key]
	delete(m.tracked, key)
	m.mu.Unlock()
	if existed {
		m.log.Info().Str("pr", key).Msg("stopped tracking pull request")
	}
}

// Run polls every tracked PR on pollInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info().Dur("poll_interval", m.pollInterval).Msg("pr monitor started")
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("pr monitor shutting down")
			return
		case <-ticker.C:
			if err := m.PollAllPRs(ctx); err != nil {
				m.log.Error().Err(err).Msg("error polling prs")
			}
		}
	}
}

// PollAllPRs polls every currently tracked PR once.
func (m *Monitor) PollAllPRs(ctx context.Context) error {
	m.mu.RLock()
	prs := make([]TrackedPr, 0, len(m.tracked))
	for _, t := range m.tracked {
		prs = append(prs, t)
	}
	m.mu.RUnlock()

	m.log.Debug().Int("count", len(prs)).Msg("polling tracked prs")

	for _, tracked := range prs {
		if err := m.PollSinglePR(ctx, tracked); err != nil {
			m.log.Warn().Str("pr", PrKey(tracked.Repo, tracked.PrNumber)).Err(err).Msg("error polling pr")
		}
	}
	return nil
}

// PollSinglePR fetches one PR's current state, emits StatusEvents for any
// transition, and updates the tracked snapshot. Transition rules are
// grounded verbatim on the original poll_single_pr.
func (m *Monitor) PollSinglePR(ctx context.Context, tracked TrackedPr) error {
	info, err := m.service.GetPR(ctx, tracked.Repo, tracked.PrNumber)
	if err != nil {
		return fmt.Errorf("fetch pr: %w", err)
	}

	var events []StatusEvent

	if info.State == PrMerged && tracked.LastState != PrMerged {
		events = append(events, StatusEvent{
			Kind:           EventMerged,
			TicketID:       tracked.TicketID,
			PrNumber:       tracked.PrNumber,
			MergeCommitSHA: info.MergeCommitSHA,
		})
	}

	if info.State == PrClosed && tracked.LastState == PrOpen {
		events = append(events, StatusEvent{Kind: EventClosed, TicketID: tracked.TicketID, PrNumber: tracked.PrNumber})
	}

	if tracked.IsDraft && !info.IsDraft && info.State == PrOpen {
		events = append(events, StatusEvent{Kind: EventReadyForReview, TicketID: tracked.TicketID, PrNumber: tracked.PrNumber})
	}

	if info.State == PrOpen && !info.IsDraft {
		ready, err := m.service.IsReadyToMerge(ctx, tracked.Repo, tracked.PrNumber)
		if err == nil && ready {
			events = append(events, StatusEvent{Kind: EventReadyToMerge, TicketID: tracked.TicketID, PrNumber: tracked.PrNumber})
		}
	}

	if info.State != tracked.LastState || info.IsDraft != tracked.IsDraft {
		key := PrKey(tracked.Repo, tracked.PrNumber)
		m.mu.Lock()
		if t, ok := m.tracked[key]; ok {
			t.LastState = info.State
			t.IsDraft = info.IsDraft
			t.MergeCommitSHA = info.MergeCommitSHA
			m.tracked[key] = t
		}
		m.mu.Unlock()
	}

	for _, ev := range events {
		m.log.Debug().Str("event", ev.Kind.String()).Str("ticket_id", ev.TicketID).Msg("emitting pr status event")
		select {
		case m.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
