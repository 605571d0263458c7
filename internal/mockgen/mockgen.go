// Package mockgen drives the terminal, activity, and PR mock doubles with
// a deterministic, patterned fleet of demo agents, for the orchestrator's
// --mock run mode and for manual exercising of internal/ws without a real
// tmux/gh environment. It never touches internal/state directly beyond the
// initial seed: once a scenario's session and mock answers are in place,
// the real SessionMonitor/Synchronizer/pr.Monitor loops observe them
// exactly as they would a live fleet, so the demo exercises the same code
// path a production run does. Adapted from the teacher's
// internal/mock/generator.go, whose generator pushed session.Store updates
// directly -- not viable here since the doubles it would need to drive
// (terminal.Backend, activity.Detector, pr.Service) didn't exist in the
// teacher's single-process session-racer domain.
package mockgen

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	activitymock "github.com/untra/operator-go/internal/activity/mock"
	"github.com/untra/operator-go/internal/pr"
	"github.com/untra/operator-go/internal/pr/prmock"
	"github.com/untra/operator-go/internal/state"
	terminalmock "github.com/untra/operator-go/internal/terminal/mock"
)

// Pattern names the shape of a scenario's progress over time, kept close
// to the teacher's pattern vocabulary (steady/burst/stall/error/
// methodical) even though what each now drives -- mock session content
// and detector answers, not a token burn rate -- is specific to this
// domain.
type Pattern string

const (
	PatternSteady     Pattern = "steady"
	PatternBurst      Pattern = "burst"
	PatternStall      Pattern = "stall"
	PatternError      Pattern = "error"
	PatternMethodical Pattern = "methodical"
)

// scenario is a static description of one demo agent's fleet entry.
type scenario struct {
	ticketID    string
	ticketType  string
	project     string
	llmTool     string
	workingDir  string
	pattern     Pattern
	stallAt     int // tick the stall pattern goes idle
	stallFor    int // ticks spent idle before resuming
	errorAt     int // tick the error pattern's session is killed
	completesAt int // tick a non-error pattern reaches PR-ready
}

var defaultScenarios = []scenario{
	{ticketID: "FEAT-101", ticketType: "feature", project: "checkout-service", llmTool: "claude", workingDir: "/work/checkout-service", pattern: PatternSteady, completesAt: 24},
	{ticketID: "FEAT-102", ticketType: "feature", project: "web-frontend", llmTool: "codex", workingDir: "/work/web-frontend", pattern: PatternBurst, completesAt: 20},
	{ticketID: "BUG-55", ticketType: "bugfix", project: "billing-api", llmTool: "claude", workingDir: "/work/billing-api", pattern: PatternStall, stallAt: 6, stallFor: 10, completesAt: 30},
	{ticketID: "BUG-58", ticketType: "bugfix", project: "auth-service", llmTool: "gemini", workingDir: "/work/auth-service", pattern: PatternError, errorAt: 9},
	{ticketID: "CHORE-12", ticketType: "chore", project: "infra-tooling", llmTool: "claude", workingDir: "/work/infra-tooling", pattern: PatternMethodical, completesAt: 40},
}

type mockAgent struct {
	scenario    scenario
	agentID     string
	sessionName string
	tick        int
	killed      bool
	prTracked   bool
	repo        pr.RepoInfo
}

// Generator seeds a fixed demo fleet into the mock backend, detector, and
// PR service, then advances it on a fixed tick, standing in for a live
// tmux + gh environment.
type Generator struct {
	store    *state.Store
	backend  *terminalmock.Backend
	detector *activitymock.Detector
	prs      *prmock.Service
	prMon    *pr.Monitor
	log      zerolog.Logger

	agents []*mockAgent
	rnd    *rand.Rand
}

// New builds a Generator. prMon may be nil, in which case seeded PRs are
// left untracked (the demo then shows PR creation but not merge/close
// transitions).
func New(store *state.Store, backend *terminalmock.Backend, detector *activitymock.Detector, prs *prmock.Service, prMon *pr.Monitor, log zerolog.Logger) *Generator {
	return &Generator{
		store:    store,
		backend:  backend,
		detector: detector,
		prs:      prs,
		prMon:    prMon,
		log:      log,
		rnd:      rand.New(rand.NewSource(42)),
	}
}

// Start seeds the default scenario fleet into the store and mock backend,
// then spawns the tick loop. Returns once seeding completes; the loop runs
// until ctx is canceled.
func (g *Generator) Start(ctx context.Context) error {
	for _, sc := range defaultScenarios {
		sessionName := "op-" + sc.ticketID
		llmTool := sc.llmTool
		launchMode := "solo"

		agentID, err := g.store.AddAgentWithOptions(sc.ticketID, sc.ticketType, sc.project, false, &llmTool, &launchMode)
		if err != nil {
			return fmt.Errorf("seed agent %s: %w", sc.ticketID, err)
		}
		if err := g.backend.CreateSession(ctx, sessionName, sc.workingDir); err != nil {
			return fmt.Errorf("create mock session for %s: %w", sc.ticketID, err)
		}
		if err := g.store.UpdateAgentSession(agentID, sessionName); err != nil {
			return fmt.Errorf("bind session for %s: %w", sc.ticketID, err)
		}
		g.backend.SetContent(sessionName, fmt.Sprintf("$ starting %s on %s\n", sc.llmTool, sc.ticketID))

		g.agents = append(g.agents, &mockAgent{
			scenario:    sc,
			agentID:     agentID,
			sessionName: sessionName,
			repo:        pr.NewRepoInfo(pr.GitHub, "demo-org", sc.project),
		})
	}

	go g.run(ctx)
	return nil
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ma := range g.agents {
				if ma.killed {
					continue
				}
				ma.tick++
				g.advance(ctx, ma)
			}
		}
	}
}

func (g *Generator) advance(ctx context.Context, ma *mockAgent) {
	switch ma.scenario.pattern {
	case PatternSteady:
		g.advanceWorking(ma)
	case PatternBurst:
		g.advanceBurst(ma)
	case PatternStall:
		g.advanceStall(ma)
	case PatternError:
		g.advanceError(ctx, ma)
	case PatternMethodical:
		g.advanceWorking(ma)
	default:
		g.advanceWorking(ma)
	}

	if !ma.killed && ma.scenario.completesAt > 0 && ma.tick == ma.scenario.completesAt {
		g.openPR(ctx, ma)
	}
}

func (g *Generator) appendContent(ma *mockAgent, line string) {
	g.backend.SetContent(ma.sessionName, line)
}

// advanceWorking simulates ordinary tool-call churn: content keeps
// changing, the detector reports neither idle nor resumed.
func (g *Generator) advanceWorking(ma *mockAgent) {
	g.detector.SetIdle(ma.sessionName, false)
	g.appendContent(ma, fmt.Sprintf("$ tool call #%d (tick %d)\n", g.rnd.Intn(50), ma.tick))
}

// advanceBurst alternates short bursts of rapid tool calls with brief
// quiet windows, without ever going fully idle.
func (g *Generator) advanceBurst(ma *mockAgent) {
	if ma.tick%4 == 0 {
		g.appendContent(ma, fmt.Sprintf("$ quiet, thinking (tick %d)\n", ma.tick))
		g.detector.SetIdle(ma.sessionName, false)
		return
	}
	g.appendContent(ma, fmt.Sprintf("$ burst tool call (tick %d)\n", ma.tick))
	g.detector.SetIdle(ma.sessionName, false)
}

// advanceStall goes idle for a stretch of ticks (simulating a session
// genuinely waiting on user input), then resumes.
func (g *Generator) advanceStall(ma *mockAgent) {
	stallEnd := ma.scenario.stallAt + ma.scenario.stallFor
	switch {
	case ma.tick == ma.scenario.stallAt:
		g.detector.SetIdle(ma.sessionName, true)
		g.backend.SetSilenceFlag(ma.sessionName, true)
	case ma.tick > ma.scenario.stallAt && ma.tick < stallEnd:
		// remain idle, no content change
	case ma.tick == stallEnd:
		g.detector.SetIdle(ma.sessionName, false)
		g.detector.SetResumed(ma.sessionName, true)
		g.backend.SetSilenceFlag(ma.sessionName, false)
		g.appendContent(ma, fmt.Sprintf("$ resumed after input (tick %d)\n", ma.tick))
	default:
		g.detector.SetResumed(ma.sessionName, false)
		g.advanceWorking(ma)
	}
}

// advanceError kills the mock session outright at the scenario's errorAt
// tick, which the real SessionMonitor observes on its next cycle as a
// session gone missing and marks orphaned -- there is no separate "error"
// signal path in this domain the way the teacher's racer-game Errored
// activity state was; going orphaned is this domain's analogue.
func (g *Generator) advanceError(ctx context.Context, ma *mockAgent) {
	if ma.tick < ma.scenario.errorAt {
		g.advanceWorking(ma)
		return
	}
	if ma.tick == ma.scenario.errorAt {
		g.log.Info().Str("ticket_id", ma.scenario.ticketID).Msg("mock scenario killing session to simulate a crash")
		_ = g.backend.KillSession(ctx, ma.sessionName)
		ma.killed = true
	}
}

// openPR seeds a PR in the mock PR service and, if a PR monitor is wired,
// registers it for tracking so the real PR poll loop picks up its
// lifecycle from here on (approval, ready-to-merge, merge) exactly as it
// would a real GitHub-backed PR.
func (g *Generator) openPR(ctx context.Context, ma *mockAgent) {
	number := int64(ma.tick + len(ma.scenario.ticketID))
	info := pr.PullRequestInfo{
		Number: number,
		URL:    fmt.Sprintf("https://example.invalid/%s/pull/%d", ma.scenario.project, number),
		State:  pr.PrOpen,
		Title:  fmt.Sprintf("%s: %s", ma.scenario.ticketID, ma.scenario.ticketType),
	}
	g.prs.SetPR(ma.repo, number, info)
	g.prs.SetReadyToMerge(ma.repo, number, true)
	g.appendContent(ma, fmt.Sprintf("$ opened PR #%d (tick %d)\n", number, ma.tick))

	if g.prMon != nil && !ma.prTracked {
		if err := g.prMon.TrackPR(ctx, ma.repo, number, ma.scenario.ticketID); err != nil {
			g.log.Warn().Err(err).Str("ticket_id", ma.scenario.ticketID).Msg("failed to track mock pr")
			return
		}
		ma.prTracked = true
	}
}
