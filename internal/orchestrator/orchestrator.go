// Package orchestrator is the top-level composition point (spec §4.11):
// it owns the state store and runs the three timer loops named in spec
// §5 — the session monitor (~30s), the ticket synchronizer (~few s), and
// the PR monitor (~60s) — wiring their output into the notifier and into
// an event channel that an optional observability server (package ws)
// can subscribe to. No single file in the original implementation owns
// this; it is the Go analogue of the original's top-level app plus its
// three background tasks, grounded on the teacher's cmd/server/main.go
// wiring order (config → backends → loops → signal-driven shutdown via
// context cancellation + sync.WaitGroup).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/untra/operator-go/internal/config"
	"github.com/untra/operator-go/internal/launcher"
	"github.com/untra/operator-go/internal/monitor"
	"github.com/untra/operator-go/internal/notify"
	"github.com/untra/operator-go/internal/pr"
	"github.com/untra/operator-go/internal/state"
	syncpkg "github.com/untra/operator-go/internal/sync"
	"github.com/untra/operator-go/internal/ticketstore"
)

// EventKind distinguishes Event variants on the orchestrator's event bus.
type EventKind int

const (
	EventHealth EventKind = iota
	EventSync
	EventPr
)

// Event is published once per health cycle, sync cycle, and PR transition.
// It is the single channel any observer (currently only package ws)
// subscribes to, rather than coupling each loop directly to its
// consumers.
type Event struct {
	Kind   EventKind
	Health *monitor.HealthReport
	Sync   *syncpkg.Result
	Pr     *pr.StatusEvent
}

// Orchestrator wires the launcher, session monitor, synchronizer, and PR
// monitor together over a shared state store, and runs their timer loops
// concurrently until its context is canceled.
type Orchestrator struct {
	cfg       *config.Config
	store     *state.Store
	tickets   ticketstore.Store
	launcher  *launcher.Launcher
	monitor   *monitor.SessionMonitor
	sync      *syncpkg.Synchronizer
	prMonitor *pr.Monitor
	notifier  notify.Notifier
	log       zerolog.Logger

	mu     sync.RWMutex
	health *monitor.HealthReport

	prEvents chan pr.StatusEvent
	events   chan Event
}

// New builds an Orchestrator from already-constructed collaborators. prMon
// and its events channel may be nil when the PR service is unavailable
// (CheckAvailable returned false at startup); the PR loop is then skipped
// entirely rather than running against a broken backend.
func New(cfg *config.Config, store *state.Store, tickets ticketstore.Store, l *launcher.Launcher, mon *monitor.SessionMonitor, sync *syncpkg.Synchronizer, prMon *pr.Monitor, prEvents chan pr.StatusEvent, notifier notify.Notifier, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		tickets:   tickets,
		launcher:  l,
		monitor:   mon,
		sync:      sync,
		prMonitor: prMon,
		prEvents:  prEvents,
		notifier:  notifier,
		log:       log,
		events:    make(chan Event, 64),
	}
}

// Events returns the read side of the orchestrator's event bus.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Launcher exposes the launcher for the CLI and HTTP command surfaces.
func (o *Orchestrator) Launcher() *launcher.Launcher {
	return o.launcher
}

// Store exposes the state store for the CLI and HTTP command surfaces.
func (o *Orchestrator) Store() *state.Store {
	return o.store
}

// LatestHealth returns the most recently completed health report, or nil
// before the first cycle has run.
func (o *Orchestrator) LatestHealth() *monitor.HealthReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.health
}

// Run starts the monitor, sync, and PR-monitor loops and blocks until ctx
// is canceled, then waits for all three to return before closing the
// event bus.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.healthLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.syncLoop(ctx)
	}()

	if o.prMonitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.prMonitor.Run(ctx)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			o.consumePrEvents(ctx)
		}()
	}

	wg.Wait()
	close(o.events)
}

func (o *Orchestrator) publish(ev Event) {
	select {
	case o.events <- ev:
	default:
		o.log.Warn().Msg("orchestrator event bus full, dropping event")
	}
}

// healthLoop runs the session monitor on its configured cadence (spec §5:
// "session monitor (~30s)"), publishing every report and forwarding
// notable transitions to the notifier.
func (o *Orchestrator) healthLoop(ctx context.Context) {
	interval := o.cfg.Monitor.HealthInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := o.monitor.CheckHealth(ctx)
			if err != nil {
				o.log.Error().Err(err).Msg("health check cycle failed")
				continue
			}

			o.mu.Lock()
			o.health = report
			o.mu.Unlock()

			o.notifyHealthTransitions(report)
			o.publish(Event{Kind: EventHealth, Health: report})
		}
	}
}

// notifyHealthTransitions maps a HealthReport's session-name lists back to
// ticket IDs for the notifier, which speaks in ticket terms rather than
// session names.
func (o *Orchestrator) notifyHealthTransitions(report *monitor.HealthReport) {
	for _, sessionName := range report.Orphaned {
		if agent := o.store.AgentBySession(sessionName); agent != nil {
			o.notifier.AgentOrphaned(agent.TicketID, sessionName)
		}
	}
	for _, sessionName := range report.AwaitingInput {
		if agent := o.store.AgentBySession(sessionName); agent != nil {
			o.notifier.AwaitingInput(agent.TicketID)
		}
	}
}

// syncLoop runs the ticket synchronizer on its configured cadence (spec
// §5: "synchronizer (~few s)"), always operating on the most recently
// completed health report rather than triggering its own capture (DESIGN.md
// open question #3).
func (o *Orchestrator) syncLoop(ctx context.Context) {
	interval := o.cfg.Monitor.SyncInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := o.LatestHealth()
			if health == nil {
				continue
			}

			result, err := o.sync.SyncAll(ctx, health)
			if err != nil {
				o.log.Error().Err(err).Msg("sync cycle failed")
				continue
			}

			for _, ticketID := range result.TimedOut {
				o.notifier.TimedOut(ticketID, "")
			}

			o.publish(Event{Kind: EventSync, Sync: result})
		}
	}
}

// consumePrEvents drains the PR monitor's event channel for the lifetime
// of ctx, applying each transition to the state store and forwarding it
// to the notifier and the event bus.
func (o *Orchestrator) consumePrEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.prEvents:
			if !ok {
				return
			}
			o.applyPrEvent(ev)
			o.publish(Event{Kind: EventPr, Pr: &ev})
		}
	}
}

func (o *Orchestrator) applyPrEvent(ev pr.StatusEvent) {
	agent := o.store.AgentByTicket(ev.TicketID)
	if agent == nil {
		o.log.Warn().Str("ticket_id", ev.TicketID).Msg("pr event for ticket with no tracked agent")
		return
	}

	switch ev.Kind {
	case pr.EventMerged:
		if err := o.store.UpdatePrStatus(agent.ID, "merged"); err != nil {
			o.log.Error().Err(err).Str("agent_id", agent.ID).Msg("failed to record merged pr status")
		}
		o.terminateDevServer(agent)
		_ = o.store.ClearReviewState(agent.ID)
		o.notifier.PrMerged(ev.TicketID, ev.PrNumber)

	case pr.EventClosed:
		if err := o.store.UpdatePrStatus(agent.ID, "closed"); err != nil {
			o.log.Error().Err(err).Str("agent_id", agent.ID).Msg("failed to record closed pr status")
		}
		o.terminateDevServer(agent)
		_ = o.store.ClearReviewState(agent.ID)

	case pr.EventReadyToMerge, pr.EventApproved:
		_ = o.store.SetAgentReviewState(agent.ID, "pending_pr_merge")

	case pr.EventChangesRequested:
		_ = o.store.ClearReviewState(agent.ID)

	case pr.EventReadyForReview:
		o.log.Info().Str("ticket_id", ev.TicketID).Msg("pr marked ready for review")
	}
}

// terminateDevServer sends a termination signal to an agent's recorded
// dev-server process, if any, as part of review cleanup (spec §5). The PID
// is persisted across orchestrator restarts rather than held as a live
// os/exec.Cmd handle, so cleanup goes through gopsutil's PID-based lookup
// instead of a stored child-process handle.
func (o *Orchestrator) terminateDevServer(agent *state.AgentRecord) {
	if agent.DevServerPid == nil {
		return
	}
	pid := int32(*agent.DevServerPid)
	proc, err := process.NewProcess(pid)
	if err != nil {
		o.log.Warn().Err(err).Int32("pid", pid).Str("agent_id", agent.ID).Msg("dev server process no longer found")
		return
	}
	if running, err := proc.IsRunning(); err != nil || !running {
		return
	}
	if err := proc.Terminate(); err != nil {
		o.log.Warn().Err(err).Int32("pid", pid).Str("agent_id", agent.ID).Msg("failed to terminate dev server")
	}
}

// PauseQueue toggles the global launch-pause flag (spec §3 "paused").
func (o *Orchestrator) PauseQueue(paused bool) error {
	if err := o.store.SetPaused(paused); err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	return nil
}
