package launcher

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/untra/operator-go/internal/ticketstore"
)

// buildPrompt composes the initial prompt handed to the agent for a ticket.
// The core treats ticket markdown as opaque beyond frontmatter (spec's
// Non-goal: "does not interpret markdown-formatted prompts semantically"),
// so this produces a pointer-style prompt rather than interpolating the
// ticket body -- the richer template/interpolation engine is the external
// ticket-UI collaborator's job.
func buildPrompt(ticket ticketstore.Ticket) string {
	step := ticket.Step
	if step == "" {
		step = "initial"
	}
	return fmt.Sprintf(
		"Work the %s step of ticket %s (%s) in project %s.\n\nFull ticket detail: %s",
		step, ticket.ID, ticket.TicketType, ticket.Project, ticket.Filepath,
	)
}

// writePromptFile persists the prompt text under <signalDir>/prompts/<uuid>.txt
// so the launched command can `cat` it rather than pass it inline (avoids
// shell-escaping and tmux send-keys length issues, per the teacher's own
// write_prompt_file approach).
func writePromptFile(signalDir, sessionUUID, prompt string) (string, error) {
	dir := filepath.Join(signalDir, "prompts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create prompts directory: %w", err)
	}
	path := filepath.Join(dir, sessionUUID+".txt")
	if err := os.WriteFile(path, []byte(prompt), 0o644); err != nil {
		return "", fmt.Errorf("write prompt file: %w", err)
	}
	return path, nil
}
