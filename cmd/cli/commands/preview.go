package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untra/operator-go/internal/session"
	"github.com/untra/operator-go/internal/statusblock"
)

// previewCmd shows a ticket's live terminal session content, plus the most
// recent structured status block the agent emitted (opr8r's output-parser
// marker format, spec §4.8), if any. Built on a session.ComposedSession
// rather than calling the backend/detector directly: this is exactly the
// one-off, outside-the-monitor-loop terminal inspection ComposedSession
// exists for.
var previewCmd = &cobra.Command{
	Use:   "preview <ticket-id>",
	Short: "Show the live terminal content and latest status block for a ticket's agent",
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
		if agent.SessionName == nil {
			return fmt.Errorf("ticket %s has no bound terminal session", ticketID)
		}

		ticket, err := a.tickets.Get(ticketID)
		if err != nil {
			return fmt.Errorf("load ticket %s: %w", ticketID, err)
		}
		sessionUUID := ""
		tool := ""
		if ticket != nil {
			sessionUUID = ticket.Sessions[ticket.Step]
		}
		if agent.LlmTool != nil {
			tool = *agent.LlmTool
		}

		cs := session.New(*agent.SessionName, sessionUUID, tool, a.backend, a.detector)
		idle, content, err := cs.CaptureAndCheckIdle(cmd.Context())
		if err != nil {
			return fmt.Errorf("capture session %s: %w", *agent.SessionName, err)
		}

		fmt.Println("--- terminal content ---")
		fmt.Println(content)
		fmt.Printf("idle: %v\n", idle)

		if parsed := statusblock.FindLast(content); parsed != nil {
			fmt.Println("--- latest status block ---")
			fmt.Printf("status: %s\n", parsed.Status)
			fmt.Printf("exit_signal: %v\n", parsed.ExitSignal)
			if parsed.Summary != nil {
				fmt.Printf("summary: %s\n", *parsed.Summary)
			}
			if parsed.Recommendation != nil {
				fmt.Printf("recommendation: %s\n", *parsed.Recommendation)
			}
			if len(parsed.Blockers) > 0 {
				fmt.Printf("blockers: %v\n", parsed.Blockers)
			}
		}
		return nil
	},
}
