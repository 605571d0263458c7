package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untra/operator-go/internal/ids"
	"github.com/untra/operator-go/internal/launcher"
)

var relaunchResumeID string

// relaunchCmd restarts an agent whose terminal session died while its
// ticket was still in-progress (spec §4.3 "relaunch"). --resume reuses the
// prior session-uuid and its saved prompt when still present; otherwise the
// launcher falls back to a fresh session-uuid automatically.
var relaunchCmd = &cobra.Command{
	Use:   "relaunch <ticket-id>",
	Short: "Restart an in-progress ticket's agent, optionally resuming its session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if relaunchResumeID != "" && !ids.IsValidUUID(relaunchResumeID) {
			return fmt.Errorf("--resume %q is not a valid session-uuid", relaunchResumeID)
		}
		a, err := buildApp()
		if err != nil {
			return err
		}
		opts := launcher.RelaunchOptions{ResumeSessionID: relaunchResumeID}
		agentID, err := a.launch.Relaunch(cmd.Context(), args[0], opts)
		if err != nil {
			return fmt.Errorf("relaunch %s: %w", args[0], err)
		}
		fmt.Printf("relaunched agent %s for ticket %s\n", agentID, args[0])
		return nil
	},
}

func init() {
	relaunchCmd.Flags().StringVar(&relaunchResumeID, "resume", "", "session-uuid to resume (falls back to a fresh start if its prompt is gone)")
}
