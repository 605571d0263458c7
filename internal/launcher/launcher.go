// Package launcher assembles and issues the initial agent invocation for a
// ticket: working directory (optionally an isolated worktree), initial
// prompt, tool-specific command, and the backing terminal session
// (spec §4.3).
package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/untra/operator-go/internal/config"
	"github.com/untra/operator-go/internal/ids"
	"github.com/untra/operator-go/internal/state"
	"github.com/untra/operator-go/internal/terminal"
	"github.com/untra/operator-go/internal/ticketstore"
	"github.com/untra/operator-go/internal/toolprofile"
)

// PreparedLaunch carries everything needed to start an agent in any
// terminal backend, without having actually created the session.
type PreparedLaunch struct {
	AgentID          string
	TicketID         string
	WorkingDirectory string
	Command          string
	TerminalName     string
	SessionID        string
	WorktreeCreated  bool
	Branch           string
}

// Launcher ties together the ticket store, orchestrator state, a terminal
// backend, and the tool-profile registry to start and restart agents.
type Launcher struct {
	cfg     config.LauncherConfig
	paths   config.PathsConfig
	backend terminal.Backend
	tickets ticketstore.Store
	state   *state.Store
	tools   *toolprofile.Registry
	idgen   ids.Generator
	log     zerolog.Logger
}

// New constructs a Launcher. tools must contain at least the configured
// DefaultTool's profile.
func New(cfg config.LauncherConfig, paths config.PathsConfig, backend terminal.Backend, tickets ticketstore.Store, store *state.Store, tools *toolprofile.Registry, log zerolog.Logger) *Launcher {
	return &Launcher{cfg: cfg, paths: paths, backend: backend, tickets: tickets, state: store, tools: tools, idgen: ids.UUIDGenerator{}, log: log}
}

// projectPath resolves a project name to its absolute working directory,
// failing fast (spec §4.3 step 1) if that directory does not exist rather
// than letting a typo'd or deleted project silently proceed through
// worktree setup and prompt-writing.
func (l *Launcher) projectPath(project string) (string, error) {
	path := l.paths.ProjectsRoot
	if project != "global" && project != "" {
		path = filepath.Join(l.paths.ProjectsRoot, project)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("project path does not exist: %s", path)
		}
		return "", fmt.Errorf("stat project path %s: %w", path, err)
	}
	return path, nil
}

func (l *Launcher) resolveToolAndModel(opts Options) (toolprofile.Profile, string, error) {
	toolName := l.cfg.DefaultTool
	model := ""
	if opts.Provider != nil {
		if opts.Provider.Tool != "" {
			toolName = opts.Provider.Tool
		}
		model = opts.Provider.Model
	}
	profile, ok := l.tools.Get(toolName)
	if !ok {
		return toolprofile.Profile{}, "", fmt.Errorf("no tool profile registered for %q", toolName)
	}
	if model == "" && len(profile.ModelAliases) > 0 {
		model = profile.ModelAliases[0]
	}
	return profile, model, nil
}

// buildCommand assembles the full shell invocation for a launch, applying
// yolo/docker wrapping and, when resuming, the resume-flag insertion.
func (l *Launcher) buildCommand(profile toolprofile.Profile, model, sessionUUID, promptFile, workingDir string, resumeID string, opts Options) string {
	cmd := profile.BuildCommand(model, sessionUUID, promptFile)

	if resumeID != "" {
		// The resume flag is "--resume" across tools regardless of each
		// profile's own session-id flag name (claude, for instance, uses
		// --session-id to name a fresh session but --resume to reattach
		// to an existing one).
		cmd = profile.InsertResumeFlag(cmd, "--resume", resumeID)
	}
	if opts.YoloMode {
		cmd = profile.WithYolo(cmd)
	}
	if opts.DockerMode && l.cfg.DockerImage != "" {
		cmd = wrapDocker(l.cfg.DockerImage, workingDir, cmd)
	}
	return cmd
}

func wrapDocker(image, workingDir, cmd string) string {
	return fmt.Sprintf("docker run --rm -v %s:%s -w %s %s bash -c %q", workingDir, workingDir, workingDir, image, cmd)
}

// PrepareLaunch claims the ticket, sets up its working directory, builds
// the full command, and registers the agent in state -- without creating a
// terminal session. Used by wrappers (editor-embedded terminals) that
// create the session themselves.
func (l *Launcher) PrepareLaunch(ctx context.Context, ticketID string, opts Options) (*PreparedLaunch, error) {
	ticket, err := l.tickets.Get(ticketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	if ticket == nil {
		return nil, fmt.Errorf("ticket %s not found", ticketID)
	}

	step := ticket.Step
	if step == "" {
		step = "initial"
	}
	if err := l.tickets.MoveToInProgress(ticketID, step); err != nil {
		return nil, fmt.Errorf("claim ticket %s: %w", ticketID, err)
	}

	project := ticket.Project
	if opts.ProjectOverride != "" {
		project = opts.ProjectOverride
	}

	projPath, err := l.projectPath(project)
	if err != nil {
		return nil, err
	}
	workingDir, branch, created, err := setupWorktree(ctx, projPath, ticketID, l.cfg.WorktreeEnabled)
	if err != nil {
		return nil, fmt.Errorf("setup worktree for %s: %w", ticketID, err)
	}
	if created {
		if err := l.tickets.SetWorktree(ticketID, workingDir, branch); err != nil {
			return nil, fmt.Errorf("record worktree for %s: %w", ticketID, err)
		}
	}

	terminalName := terminal.SessionNameForTicket(ticketID)
	sessionUUID := l.idgen.SessionUUID()
	if err := l.tickets.SetSessionForStep(ticketID, step, sessionUUID); err != nil {
		return nil, fmt.Errorf("record session-uuid for %s: %w", ticketID, err)
	}

	profile, model, err := l.resolveToolAndModel(opts)
	if err != nil {
		return nil, err
	}

	promptFile, err := writePromptFile(l.paths.SignalDir, sessionUUID, buildPrompt(*ticket))
	if err != nil {
		return nil, err
	}

	cmd := l.buildCommand(profile, model, sessionUUID, promptFile, workingDir, "", opts)

	llmTool := profile.ToolName
	launchMode := opts.LaunchModeString()
	agentID, err := l.state.AddAgentWithOptions(ticketID, ticket.TicketType, ticket.Project, isPaired(ticket.TicketType), &llmTool, &launchMode)
	if err != nil {
		return nil, fmt.Errorf("register agent: %w", err)
	}
	if err := l.state.UpdateAgentSession(agentID, terminalName); err != nil {
		return nil, err
	}
	if created {
		if err := l.state.UpdateAgentWorktreePath(agentID, workingDir); err != nil {
			return nil, err
		}
	}
	if ticket.Step != "" {
		if err := l.state.UpdateAgentStep(agentID, ticket.Step); err != nil {
			return nil, err
		}
	}

	l.log.Info().
		Str("ticket_id", ticketID).
		Str("session_name", terminalName).
		Str("agent_id", agentID).
		Str("tool", profile.ToolName).
		Msg("prepared agent launch")

	return &PreparedLaunch{
		AgentID:          agentID,
		TicketID:         ticketID,
		WorkingDirectory: workingDir,
		Command:          cmd,
		TerminalName:     terminalName,
		SessionID:        sessionUUID,
		WorktreeCreated:  created,
		Branch:           branch,
	}, nil
}

// Launch prepares and then actually creates the terminal session and sends
// the assembled command, for backends that support direct session control
// (e.g. tmux).
func (l *Launcher) Launch(ctx context.Context, ticketID string, opts Options) (string, error) {
	prepared, err := l.PrepareLaunch(ctx, ticketID, opts)
	if err != nil {
		return "", err
	}

	if err := l.createAndSend(ctx, prepared.TerminalName, prepared.WorkingDirectory, prepared.Command); err != nil {
		return "", err
	}

	l.log.Info().
		Str("ticket_id", ticketID).
		Str("session_name", prepared.TerminalName).
		Str("agent_id", prepared.AgentID).
		Msg("launched agent")

	return prepared.AgentID, nil
}

func (l *Launcher) createAndSend(ctx context.Context, sessionName, workingDir, cmd string) error {
	exists, err := l.backend.SessionExists(ctx, sessionName)
	if err != nil {
		l.log.Warn().Err(err).Str("session_name", sessionName).Msg("error checking for existing session, proceeding anyway")
	} else if exists {
		return fmt.Errorf("terminal session %q already exists", sessionName)
	}

	if err := l.backend.CreateSession(ctx, sessionName, workingDir); err != nil {
		return fmt.Errorf("create terminal session %q: %w", sessionName, err)
	}

	settle(l.cfg.SettlingDelay)

	if l.backend.SupportsSilenceWatchdog() {
		if err := l.backend.SetMonitorSilence(ctx, sessionName, int(l.cfg.SilenceThreshold.Seconds())); err != nil {
			l.log.Warn().Err(err).Str("session_name", sessionName).Msg("failed to arm silence watchdog")
		}
	}

	if err := l.backend.SendCommand(ctx, sessionName, cmd); err != nil {
		_ = l.backend.KillSession(ctx, sessionName)
		return fmt.Errorf("send launch command to %q: %w", sessionName, err)
	}
	return nil
}

// Relaunch restarts an agent for a ticket that is already in-progress
// (its terminal session died but the ticket wasn't re-queued). When
// opts.ResumeSessionID is non-empty and its prompt file still exists, the
// agent resumes the existing LLM-side conversation; otherwise it starts
// fresh with a new session-uuid.
func (l *Launcher) Relaunch(ctx context.Context, ticketID string, opts RelaunchOptions) (string, error) {
	ticket, err := l.tickets.Get(ticketID)
	if err != nil {
		return "", fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	if ticket == nil {
		return "", fmt.Errorf("ticket %s not found", ticketID)
	}

	workingDir := ticket.WorktreePath
	branch := ticket.Branch
	if workingDir == "" {
		projPath, err := l.projectPath(ticket.Project)
		if err != nil {
			return "", err
		}
		var created bool
		workingDir, branch, created, err = setupWorktree(ctx, projPath, ticketID, l.cfg.WorktreeEnabled)
		if err != nil {
			return "", fmt.Errorf("setup worktree for %s: %w", ticketID, err)
		}
		if created {
			if err := l.tickets.SetWorktree(ticketID, workingDir, branch); err != nil {
				return "", err
			}
		}
	}

	step := ticket.Step
	if step == "" {
		step = "initial"
	}

	sessionUUID := opts.ResumeSessionID
	isResume := false
	var promptFile string
	if sessionUUID != "" {
		candidate := filepath.Join(l.paths.SignalDir, "prompts", sessionUUID+".txt")
		if fileExists(candidate) {
			promptFile = candidate
			isResume = true
		}
	}
	if !isResume {
		sessionUUID = l.idgen.SessionUUID()
		promptFile, err = writePromptFile(l.paths.SignalDir, sessionUUID, buildPrompt(*ticket))
		if err != nil {
			return "", err
		}
		if err := l.tickets.SetSessionForStep(ticketID, step, sessionUUID); err != nil {
			return "", err
		}
	}

	profile, model, err := l.resolveToolAndModel(opts.Options)
	if err != nil {
		return "", err
	}

	resumeID := ""
	if isResume {
		resumeID = sessionUUID
	}
	cmd := l.buildCommand(profile, model, sessionUUID, promptFile, workingDir, resumeID, opts.Options)

	terminalName := terminal.SessionNameForTicket(ticketID)
	if err := l.createAndSend(ctx, terminalName, workingDir, cmd); err != nil {
		return "", err
	}

	llmTool := profile.ToolName
	launchMode := opts.LaunchModeString()
	agentID, err := l.state.AddAgentWithOptions(ticketID, ticket.TicketType, ticket.Project, isPaired(ticket.TicketType), &llmTool, &launchMode)
	if err != nil {
		return "", fmt.Errorf("register agent: %w", err)
	}
	if err := l.state.UpdateAgentSession(agentID, terminalName); err != nil {
		return "", err
	}
	if workingDir != "" {
		if err := l.state.UpdateAgentWorktreePath(agentID, workingDir); err != nil {
			return "", err
		}
	}
	if ticket.Step != "" {
		if err := l.state.UpdateAgentStep(agentID, ticket.Step); err != nil {
			return "", err
		}
	}

	l.log.Info().
		Str("ticket_id", ticketID).
		Str("session_name", terminalName).
		Str("agent_id", agentID).
		Bool("is_resume", isResume).
		Msg("relaunched agent")

	return agentID, nil
}

// ListSessions returns all operator-managed terminal sessions.
func (l *Launcher) ListSessions(ctx context.Context) ([]terminal.Session, error) {
	sessions, err := l.backend.ListSessions(ctx, terminal.DefaultSessionPrefix)
	if err != nil {
		l.log.Warn().Err(err).Msg("failed to list terminal sessions")
		return nil, nil
	}
	return sessions, nil
}

// KillSession terminates a specific operator-managed session.
func (l *Launcher) KillSession(ctx context.Context, sessionName string) error {
	return l.backend.KillSession(ctx, sessionName)
}

// CaptureSessionContent returns the current pane/terminal content.
func (l *Launcher) CaptureSessionContent(ctx context.Context, sessionName string) (string, error) {
	if !l.backend.SupportsContentCapture() {
		return "", terminal.ErrNotSupported
	}
	return l.backend.CaptureContent(ctx, sessionName)
}

// SessionAlive reports whether a session still exists.
func (l *Launcher) SessionAlive(ctx context.Context, sessionName string) bool {
	exists, err := l.backend.SessionExists(ctx, sessionName)
	return err == nil && exists
}

func isPaired(ticketType string) bool {
	return ticketType == "SPIKE" || ticketType == "INV"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
