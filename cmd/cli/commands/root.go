// Package commands provides the operator CLI's cobra command tree. Every
// subcommand operates against the same on-disk config/state/ticket layout
// as cmd/server, so it is safe to run alongside (or instead of) a live
// daemon: state.Store is single-writer and JSON-persisted (spec §4.4), so
// a CLI invocation and a running server never see a torn document.
package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/untra/operator-go/internal/activity"
	activitymock "github.com/untra/operator-go/internal/activity/mock"
	"github.com/untra/operator-go/internal/config"
	"github.com/untra/operator-go/internal/launcher"
	"github.com/untra/operator-go/internal/logging"
	"github.com/untra/operator-go/internal/pr"
	"github.com/untra/operator-go/internal/pr/ghcli"
	"github.com/untra/operator-go/internal/pr/prmock"
	"github.com/untra/operator-go/internal/pr/retry"
	"github.com/untra/operator-go/internal/state"
	syncpkg "github.com/untra/operator-go/internal/sync"
	"github.com/untra/operator-go/internal/terminal"
	terminalmock "github.com/untra/operator-go/internal/terminal/mock"
	"github.com/untra/operator-go/internal/terminal/editorhook"
	"github.com/untra/operator-go/internal/terminal/tmux"
	"github.com/untra/operator-go/internal/ticketstore"
	"github.com/untra/operator-go/internal/ticketstore/fsstore"
	"github.com/untra/operator-go/internal/toolprofile"
	"path/filepath"
)

var (
	flagConfigPath string
	flagLogLevel   string
	flagPretty     bool
	flagMock       bool
	flagBackend    string
)

var rootCmd = &cobra.Command{
	Use:   "operatorctl",
	Short: "Control a running agent orchestrator from the command line",
	Long: `operatorctl drives the same ticket queue, agent state, and terminal
sessions a running operator server does: enqueue a ticket, pause or resume
the queue, force a sync cycle, or inspect and kill live sessions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to config file (defaults to the XDG config path)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty-log", false, "use colorized console logging instead of JSON")
	rootCmd.PersistentFlags().BoolVar(&flagMock, "mock", false, "operate against in-memory mock backends instead of tmux/gh")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "tmux", "terminal backend to drive (tmux, editorhook)")

	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(relaunchCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app bundles the collaborators every subcommand needs. Built fresh per
// invocation (the CLI is a one-shot process, unlike cmd/server's
// long-running orchestrator).
type app struct {
	cfg      *config.Config
	store    *state.Store
	tickets  ticketstore.Store
	tools    *toolprofile.Registry
	backend  terminal.Backend
	detector activity.Detector
	prs      pr.Service
	launch   *launcher.Launcher
	log      zerolog.Logger
}

// buildApp loads config/state/tickets and wires a Launcher, mirroring
// cmd/server's construction order so a CLI-issued launch is indistinguishable
// from one the daemon performed itself.
func buildApp() (*app, error) {
	log := logging.New(logging.ParseLevel(flagLogLevel), flagPretty)

	cfgPath := flagConfigPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := state.Load(filepath.Dir(cfg.Paths.StateFile))
	if err != nil {
		return nil, fmt.Errorf("load orchestrator state: %w", err)
	}

	tickets, err := fsstore.New(cfg.Paths.TicketsRoot)
	if err != nil {
		return nil, fmt.Errorf("open ticket store: %w", err)
	}

	profiles, err := toolprofile.LoadAll(cfg.Paths.ToolProfilesDir)
	if err != nil {
		return nil, fmt.Errorf("load tool profiles: %w", err)
	}
	tools := toolprofile.NewRegistry(profiles)

	var (
		backend  terminal.Backend
		detector activity.Detector
		prs      pr.Service
	)
	if flagMock {
		backend = terminalmock.New()
		detector = activitymock.New()
		prs = prmock.New()
	} else {
		switch flagBackend {
		case "editorhook":
			backend = editorhook.New(cfg.Paths.SignalDir)
		case "tmux", "":
			backend = tmux.New()
		default:
			return nil, fmt.Errorf("unknown terminal backend %q", flagBackend)
		}
		detector = activity.NewCascadeDetector(activity.NewHookManager(cfg.Paths.SignalDir))
		prs = retry.New(ghcli.New(), cfg.PR.RetryMinDelay, cfg.PR.RetryMaxDelay, cfg.PR.RetryMaxTries, cfg.PR.UnauthorizedThreshold)
	}

	l := launcher.New(cfg.Launcher, cfg.Paths, backend, tickets, store, tools, log)

	return &app{
		cfg:      cfg,
		store:    store,
		tickets:  tickets,
		tools:    tools,
		backend:  backend,
		detector: detector,
		prs:      prs,
		launch:   l,
		log:      log,
	}, nil
}

// buildSynchronizer constructs a Synchronizer for one-shot use (the `sync`
// subcommand), sharing the app's backend, ticket store, and state store.
func (a *app) buildSynchronizer() *syncpkg.Synchronizer {
	return syncpkg.New(a.backend, a.tickets, a.store, a.cfg.Monitor.SyncInterval, a.cfg.Monitor.StepTimeout, a.log)
}

