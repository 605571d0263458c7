package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/untra/operator-go/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage live agent sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked agents and their status",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TICKET\tSTATUS\tSESSION\tTOOL\tSTEP\t")
		for _, agent := range a.store.Snapshot().Agents {
			sessionName := "-"
			if agent.SessionName != nil {
				sessionName = *agent.SessionName
			}
			tool := "-"
			if agent.LlmTool != nil {
				tool = *agent.LlmTool
			}
			step := "-"
			if agent.CurrentStep != nil {
				step = *agent.CurrentStep
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", agent.TicketID, agent.Status, sessionName, tool, step)
		}
		return w.Flush()
	},
}

var sessionsKillCmd = &cobra.Command{
	Use:   "kill <ticket-id>",
	Short: "Kill a ticket's terminal session and drop its agent record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		ticketID := args[0]
		agent := a.store.AgentByTicket(ticketID)
		if agent == nil {
			return fmt.Errorf("no agent registered for ticket %s", ticketID)
		}
		if agent.SessionName != nil {
			ticket, err := a.tickets.Get(ticketID)
			sessionUUID := ""
			tool := ""
			if err == nil && ticket != nil {
				sessionUUID = ticket.Sessions[ticket.Step]
			}
			if agent.LlmTool != nil {
				tool = *agent.LlmTool
			}
			cs := session.New(*agent.SessionName, sessionUUID, tool, a.backend, a.detector)
			if err := cs.Kill(cmd.Context()); err != nil {
				return fmt.Errorf("kill session %s: %w", *agent.SessionName, err)
			}
			if _, err := a.store.RemoveAgentBySession(*agent.SessionName); err != nil {
				return fmt.Errorf("remove agent record for %s: %w", ticketID, err)
			}
		} else if err := a.store.RemoveAgent(agent.ID); err != nil {
			return fmt.Errorf("remove agent record for %s: %w", ticketID, err)
		}
		fmt.Printf("killed agent for ticket %s\n", ticketID)
		return nil
	},
}

// sessionsCleanupStaleCmd purges agent records the session monitor has
// already marked orphaned (dead backend session, no matching process) --
// an explicit operator acknowledgment that those entries are gone for good,
// rather than something the monitor does unprompted.
var sessionsCleanupStaleCmd = &cobra.Command{
	Use:   "cleanup-stale",
	Short: "Remove agent records for sessions the monitor has marked orphaned",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		orphaned := a.store.OrphanedAgents()
		removed := 0
		for _, agent := range orphaned {
			if err := a.store.RemoveAgent(agent.ID); err != nil {
				return fmt.Errorf("remove orphaned agent %s (ticket %s): %w", agent.ID, agent.TicketID, err)
			}
			removed++
		}
		fmt.Printf("removed %d stale agent record(s)\n", removed)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsKillCmd)
	sessionsCmd.AddCommand(sessionsCleanupStaleCmd)
}
