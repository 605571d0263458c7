package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/untra/operator-go/internal/activity"
	"github.com/untra/operator-go/internal/config"
	"github.com/untra/operator-go/internal/launcher"
	"github.com/untra/operator-go/internal/logging"
	"github.com/untra/operator-go/internal/mockgen"
	"github.com/untra/operator-go/internal/monitor"
	"github.com/untra/operator-go/internal/notify"
	"github.com/untra/operator-go/internal/orchestrator"
	"github.com/untra/operator-go/internal/pr"
	"github.com/untra/operator-go/internal/pr/ghcli"
	"github.com/untra/operator-go/internal/pr/prmock"
	"github.com/untra/operator-go/internal/pr/retry"
	"github.com/untra/operator-go/internal/state"
	syncpkg "github.com/untra/operator-go/internal/sync"
	"github.com/untra/operator-go/internal/terminal"
	activitymock "github.com/untra/operator-go/internal/activity/mock"
	terminalmock "github.com/untra/operator-go/internal/terminal/mock"
	"github.com/untra/operator-go/internal/terminal/editorhook"
	"github.com/untra/operator-go/internal/terminal/tmux"
	"github.com/untra/operator-go/internal/ticketstore/fsstore"
	"github.com/untra/operator-go/internal/toolprofile"
	"github.com/untra/operator-go/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "run against in-memory mock backends instead of tmux/gh")
	backendName := flag.String("backend", "tmux", "terminal backend to drive (tmux, editorhook)")
	configPath := flag.String("config", "", "path to config file (defaults to the XDG config path)")
	port := flag.Int("port", 0, "override the observability server port")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	prettyLog := flag.Bool("pretty-log", isTerminal(), "use colorized console logging instead of JSON")
	flag.Parse()

	log := logging.New(logging.ParseLevel(*logLevel), *prettyLog)

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfgPath).Msg("failed to load config")
	}
	if *port > 0 {
		cfg.Observe.Port = *port
	}

	store, err := state.Load(filepath.Dir(cfg.Paths.StateFile))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load orchestrator state")
	}

	tickets, err := fsstore.New(cfg.Paths.TicketsRoot)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open ticket store")
	}

	profiles, err := toolprofile.LoadAll(cfg.Paths.ToolProfilesDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load tool profiles")
	}
	tools := toolprofile.NewRegistry(profiles)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		backend    terminal.Backend
		detector   activity.Detector
		prService  pr.Service
		mockTermBk *terminalmock.Backend
		mockAct    *activitymock.Detector
		mockPR     *prmock.Service
	)

	if *mockMode {
		log.Info().Msg("starting in mock mode: terminal, activity, and PR backends are in-memory")
		mockTermBk = terminalmock.New()
		mockAct = activitymock.New()
		mockPR = prmock.New()
		backend = mockTermBk
		detector = mockAct
		prService = mockPR
	} else {
		switch *backendName {
		case "editorhook":
			backend = editorhook.New(cfg.Paths.SignalDir)
		case "tmux", "":
			backend = tmux.New()
		default:
			log.Fatal().Str("backend", *backendName).Msg("unknown terminal backend")
		}
		detector = activity.NewCascadeDetector(activity.NewHookManager(cfg.Paths.SignalDir))
		prService = retry.New(ghcli.New(), cfg.PR.RetryMinDelay, cfg.PR.RetryMaxDelay, cfg.PR.RetryMaxTries, cfg.PR.UnauthorizedThreshold)
	}

	l := launcher.New(cfg.Launcher, cfg.Paths, backend, tickets, store, tools, log)
	mon := monitor.New(backend, detector, store, cfg.Monitor.HealthInterval, int64(cfg.Monitor.StepTimeout.Seconds()), log, monitor.WithFailureThreshold(cfg.Monitor.HealthFailureThreshold))
	synchronizer := syncpkg.New(backend, tickets, store, cfg.Monitor.SyncInterval, cfg.Monitor.StepTimeout, log)
	notifier := notify.NewLogNotifier(log)

	var prMon *pr.Monitor
	var prEvents chan pr.StatusEvent
	if available, err := prService.CheckAvailable(ctx); err != nil || !available {
		log.Warn().Err(err).Msg("pr service unavailable at startup, pr tracking disabled")
	} else {
		prEvents = make(chan pr.StatusEvent, 32)
		prMon = pr.NewMonitor(prService, prEvents, log).WithPollInterval(cfg.PR.PollInterval)
	}

	orch := orchestrator.New(cfg, store, tickets, l, mon, synchronizer, prMon, prEvents, notifier, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		orch.Run(ctx)
	}()

	if *mockMode {
		gen := mockgen.New(store, mockTermBk, mockAct, mockPR, prMon, log)
		if err := gen.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start mock fleet generator")
		}
	}

	if cfg.Observe.Enabled {
		broadcaster := ws.NewBroadcaster(store, 200*time.Millisecond, 10*time.Second, cfg.Observe.MaxConnections, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			bridgeEvents(ctx, orch, broadcaster)
		}()

		wsServer := ws.NewServer(cfg.Observe, store, broadcaster, backend, log)
		mux := http.NewServeMux()
		wsServer.SetupRoutes(mux)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.ListenAndServe(ctx, cfg.Observe.Host, cfg.Observe.Port, mux, log); err != nil {
				log.Error().Err(err).Msg("observability server error")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")
	cancel()
	wg.Wait()
}

// bridgeEvents forwards the orchestrator's event bus onto the
// observability broadcaster until ctx is canceled or the bus closes.
func bridgeEvents(ctx context.Context, orch *orchestrator.Orchestrator, broadcaster *ws.Broadcaster) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-orch.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case orchestrator.EventHealth:
				if ev.Health != nil {
					broadcaster.BroadcastHealth(ws.HealthPayload{
						Checked:       ev.Health.Checked,
						Alive:         ev.Health.Alive,
						Orphaned:      ev.Health.Orphaned,
						Changed:       ev.Health.Changed,
						TimedOut:      ev.Health.TimedOut,
						AwaitingInput: ev.Health.AwaitingInput,
						Resumed:       ev.Health.Resumed,
					})
				}
			case orchestrator.EventSync:
				broadcaster.QueueUpdate(broadcaster.Agents())
			case orchestrator.EventPr:
				if ev.Pr != nil {
					broadcaster.BroadcastPrEvent(*ev.Pr)
				}
			}
		}
	}
}

func isTerminal() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
