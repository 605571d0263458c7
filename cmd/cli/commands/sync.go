package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untra/operator-go/internal/monitor"
)

var syncForce bool

// syncCmd runs one synchronizer cycle on demand, outside the daemon's own
// cadence (spec §6 "force sync"). It always captures a fresh health report
// first -- there is no long-running health loop to read a cached one from
// in a one-shot CLI process.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one ticket sync cycle immediately",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}

		mon := monitor.New(a.backend, a.detector, a.store, a.cfg.Monitor.HealthInterval, int64(a.cfg.Monitor.StepTimeout.Seconds()), a.log, monitor.WithFailureThreshold(a.cfg.Monitor.HealthFailureThreshold))
		health, err := mon.CheckHealth(cmd.Context())
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}

		synchronizer := a.buildSynchronizer()
		if !syncForce && !synchronizer.ShouldSync() {
			fmt.Printf("sync interval not yet elapsed, %s remaining (use --force to override)\n", synchronizer.TimeUntilNextSync())
			return nil
		}

		result, err := synchronizer.SyncAll(cmd.Context(), health)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}

		fmt.Printf("synced %d tickets\n", result.Synced)
		if len(result.MovedToAwaiting) > 0 {
			fmt.Printf("moved to awaiting input: %v\n", result.MovedToAwaiting)
		}
		if len(result.TimedOut) > 0 {
			fmt.Printf("timed out: %v\n", result.TimedOut)
		}
		if len(result.Errors) > 0 {
			fmt.Printf("errors: %v\n", result.Errors)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "run even if the configured sync interval hasn't elapsed")
}
