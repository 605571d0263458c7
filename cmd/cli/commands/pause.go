package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// pauseCmd sets the global queue pause flag (spec §3 "paused: bool"),
// which downstream launchers/embedders are expected to check before
// reserving a new ticket.
var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the ticket queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		if err := a.store.SetPaused(true); err != nil {
			return fmt.Errorf("pause queue: %w", err)
		}
		fmt.Println("queue paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the ticket queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		if err := a.store.SetPaused(false); err != nil {
			return fmt.Errorf("resume queue: %w", err)
		}
		fmt.Println("queue resumed")
		return nil
	},
}
