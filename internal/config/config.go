// Package config loads and reloads the orchestrator's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCompletedCap is the bound on the completed-tickets FIFO (spec: ≈100).
const DefaultCompletedCap = 100

type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Launcher  LauncherConfig  `yaml:"launcher"`
	PR        PRConfig        `yaml:"pr"`
	Observe   ObserveConfig   `yaml:"observe"`
}

// PathsConfig locates the orchestrator's on-disk footprint.
type PathsConfig struct {
	// StateFile locates the durable OrchestratorState JSON document. Only
	// its directory is used: state.Load always reads and writes
	// state.json inside that directory.
	StateFile string `yaml:"state_file"`
	// SignalDir is where tool hooks write HookSignal files and where the
	// editor-embedded backend's discovery file lives.
	SignalDir string `yaml:"signal_dir"`
	// ProjectsRoot is the parent of all per-project working trees.
	ProjectsRoot string `yaml:"projects_root"`
	// TicketsRoot holds the three-state ticket directory layout
	// (queue/, in-progress/, completed/).
	TicketsRoot string `yaml:"tickets_root"`
	// ToolProfilesDir optionally overrides individual embedded tool
	// profiles; files here take precedence by tool_name.
	ToolProfilesDir string `yaml:"tool_profiles_dir"`
}

type MonitorConfig struct {
	// HealthInterval is the session monitor's cycle period (spec: ≈30s).
	HealthInterval time.Duration `yaml:"health_interval"`
	// SyncInterval is the ticket↔session synchronizer's cadence (spec: a few seconds).
	SyncInterval time.Duration `yaml:"sync_interval"`
	// StepTimeout marks a step timed-out once exceeded.
	StepTimeout time.Duration `yaml:"step_timeout"`
	// HealthFailureThreshold is how many consecutive ListSessions failures
	// the session monitor tolerates (skipping the cycle) before it treats
	// the empty reading as real and orphans the tracked agents.
	HealthFailureThreshold int `yaml:"health_failure_threshold"`
	// CompletedCap is the configured completed-tickets FIFO bound. It is
	// reported by Diff but is not passed to the state store, whose bound
	// is state.DefaultCompletedCap unless state.WithCompletedCap is given.
	CompletedCap int `yaml:"completed_cap"`
}

type LauncherConfig struct {
	// DefaultTool names the tool used when no provider is given at launch.
	DefaultTool string `yaml:"default_tool"`
	// SettlingDelay is the pause after session creation before sending keystrokes.
	SettlingDelay time.Duration `yaml:"settling_delay"`
	// SilenceThreshold configures the multiplexer's no-output watchdog.
	SilenceThreshold time.Duration `yaml:"silence_threshold"`
	// WorktreeEnabled toggles per-ticket isolated checkouts.
	WorktreeEnabled bool `yaml:"worktree_enabled"`
	// DockerImage, when non-empty, wraps launches in a container invocation.
	DockerImage string `yaml:"docker_image"`
}

type PRConfig struct {
	// PollInterval is the PR monitor's cadence (spec: ≈60s).
	PollInterval time.Duration `yaml:"poll_interval"`
	// RetryMinDelay/RetryMaxDelay/RetryMaxTries parameterize the
	// exponential-backoff retry policy in front of the PR service.
	RetryMinDelay time.Duration `yaml:"retry_min_delay"`
	RetryMaxDelay time.Duration `yaml:"retry_max_delay"`
	RetryMaxTries int           `yaml:"retry_max_tries"`
	// UnauthorizedThreshold is the consecutive-failure count at which a
	// provider is flagged as needing credential refresh (spec default: 3).
	UnauthorizedThreshold int `yaml:"unauthorized_threshold"`
}

// ObserveConfig controls the optional websocket observability feed.
type ObserveConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token"`
	MaxConnections int      `yaml:"max_connections"`
}

func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the default config if
// the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return Load(path)
}

func defaultConfig() *Config {
	stateDir := defaultStateDir()
	return &Config{
		Paths: PathsConfig{
			StateFile:    filepath.Join(stateDir, "operator", "state.json"),
			SignalDir:    filepath.Join(os.TempDir(), "operator-signals"),
			ProjectsRoot: filepath.Join(stateDir, "operator", "projects"),
			TicketsRoot:  filepath.Join(stateDir, "operator", "tickets"),
		},
		Monitor: MonitorConfig{
			HealthInterval:         30 * time.Second,
			SyncInterval:           5 * time.Second,
			StepTimeout:            45 * time.Minute,
			HealthFailureThreshold: 3,
			CompletedCap:           DefaultCompletedCap,
		},
		Launcher: LauncherConfig{
			DefaultTool:      "claude",
			SettlingDelay:    400 * time.Millisecond,
			SilenceThreshold: 10 * time.Second,
			WorktreeEnabled:  true,
		},
		PR: PRConfig{
			PollInterval:          60 * time.Second,
			RetryMinDelay:         500 * time.Millisecond,
			RetryMaxDelay:         30 * time.Second,
			RetryMaxTries:         5,
			UnauthorizedThreshold: 3,
		},
		Observe: ObserveConfig{
			Enabled:        false,
			Port:           8080,
			Host:           "127.0.0.1",
			MaxConnections: 100,
		},
	}
}

func defaultStateDir() string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state")
}

func defaultConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config")
}

// DefaultConfigPath returns the default XDG-compliant config file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "operator", "config.yaml")
}

// Diff compares two configs and returns human-readable descriptions of what
// changed, for logging on live reload. It compares the monitor timers and
// thresholds, the launcher settings, the PR poll interval, retry tries and
// unauthorized threshold, and observe.enabled/observe.port; paths and the
// remaining fields are not compared.
func Diff(old, new *Config) []string {
	var changes []string

	report := func(name string, a, b any) {
		if a != b {
			changes = append(changes, fmt.Sprintf("%s: %v → %v", name, a, b))
		}
	}

	report("monitor.health_interval", old.Monitor.HealthInterval, new.Monitor.HealthInterval)
	report("monitor.sync_interval", old.Monitor.SyncInterval, new.Monitor.SyncInterval)
	report("monitor.step_timeout", old.Monitor.StepTimeout, new.Monitor.StepTimeout)
	report("monitor.health_failure_threshold", old.Monitor.HealthFailureThreshold, new.Monitor.HealthFailureThreshold)
	report("monitor.completed_cap", old.Monitor.CompletedCap, new.Monitor.CompletedCap)

	report("launcher.default_tool", old.Launcher.DefaultTool, new.Launcher.DefaultTool)
	report("launcher.settling_delay", old.Launcher.SettlingDelay, new.Launcher.SettlingDelay)
	report("launcher.silence_threshold", old.Launcher.SilenceThreshold, new.Launcher.SilenceThreshold)
	report("launcher.worktree_enabled", old.Launcher.WorktreeEnabled, new.Launcher.WorktreeEnabled)
	report("launcher.docker_image", old.Launcher.DockerImage, new.Launcher.DockerImage)

	report("pr.poll_interval", old.PR.PollInterval, new.PR.PollInterval)
	report("pr.retry_max_tries", old.PR.RetryMaxTries, new.PR.RetryMaxTries)
	report("pr.unauthorized_threshold", old.PR.UnauthorizedThreshold, new.PR.UnauthorizedThreshold)

	report("observe.enabled", old.Observe.Enabled, new.Observe.Enabled)
	report("observe.port", old.Observe.Port, new.Observe.Port)

	return changes
}

// Watch starts an fsnotify watcher on path's containing directory and
// invokes onChange with the freshly reloaded config whenever path itself is
// written. onChange receives the diff against the previous config and is
// not called when nothing compared by Diff changed. A write that fails to
// load is skipped without stopping the watch loop, and the previous config
// stays the baseline for the next diff.
func Watch(path string, onChange func(cfg *Config, diff []string)) (stop func(), err error) {
	return watchImpl(path, onChange)
}
