package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untra/operator-go/internal/launcher"
)

// enqueueCmd is the plain-language entry point spec.md §1 describes: "the
// UI enqueues a launch request on a selected ticket". It launches with the
// configured default tool and no overrides -- the queue-driven path an
// external UI or automation would use.
var enqueueCmd = &cobra.Command{
	Use:   "enqueue <ticket-id>",
	Short: "Reserve a queued ticket and launch its agent with default options",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		agentID, err := a.launch.Launch(cmd.Context(), args[0], launcher.Options{})
		if err != nil {
			return fmt.Errorf("enqueue %s: %w", args[0], err)
		}
		fmt.Printf("launched agent %s for ticket %s\n", agentID, args[0])
		return nil
	},
}

var (
	launchTool    string
	launchModel   string
	launchProject string
	launchYolo    bool
	launchDocker  bool
)

// launchCmd is the explicit-options variant of enqueue, for an operator who
// wants to pick the tool/model or run in yolo/docker mode rather than take
// the configured defaults.
var launchCmd = &cobra.Command{
	Use:   "launch <ticket-id>",
	Short: "Launch a queued ticket with explicit tool/model/mode overrides",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		opts := launcher.Options{
			ProjectOverride: launchProject,
			YoloMode:        launchYolo,
			DockerMode:      launchDocker,
		}
		if launchTool != "" || launchModel != "" {
			opts.Provider = &launcher.ProviderSelection{Tool: launchTool, Model: launchModel}
		}
		agentID, err := a.launch.Launch(cmd.Context(), args[0], opts)
		if err != nil {
			return fmt.Errorf("launch %s: %w", args[0], err)
		}
		fmt.Printf("launched agent %s for ticket %s\n", agentID, args[0])
		return nil
	},
}

func init() {
	launchCmd.Flags().StringVar(&launchTool, "tool", "", "override the configured default tool")
	launchCmd.Flags().StringVar(&launchModel, "model", "", "override the tool's default model alias")
	launchCmd.Flags().StringVar(&launchProject, "project", "", "override the ticket's project for path resolution")
	launchCmd.Flags().BoolVar(&launchYolo, "yolo", false, "run the tool in yolo mode")
	launchCmd.Flags().BoolVar(&launchDocker, "docker", false, "run the tool inside the configured docker image")
}
