// Package fsstore is the default ticketstore.Store, backed by a
// three-state directory layout (queue/, in-progress/, completed/) of
// markdown files with a YAML frontmatter block plus an append-only
// "## History" section. It is deliberately not a templating engine or a
// semantic markdown interpreter -- it parses just enough structure to
// satisfy ticketstore.Store.
package fsstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/untra/operator-go/internal/ticketstore"
)

const (
	queueDir      = "queue"
	inProgressDir = "in-progress"
	completedDir  = "completed"
	historyHeader = "## History"
)

type frontmatter struct {
	ID           string            `yaml:"id"`
	Status       string            `yaml:"status"`
	Step         string            `yaml:"step"`
	Priority     string            `yaml:"priority"`
	Project      string            `yaml:"project"`
	TicketType   string            `yaml:"ticket_type"`
	Sessions     map[string]string `yaml:"sessions,omitempty"`
	WorktreePath string            `yaml:"worktree_path,omitempty"`
	Branch       string            `yaml:"branch,omitempty"`
}

// Store implements ticketstore.Store over a root directory containing
// queue/, in-progress/, and completed/ subdirectories.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating the three state
// subdirectories if they do not exist.
func New(root string) (*Store, error) {
	for _, d := range []string{queueDir, inProgressDir, completedDir} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create ticket state directory %s: %w", d, err)
		}
	}
	return &Store{root: root}, nil
}

type document struct {
	fm   frontmatter
	body string // everything after the closing "---" of the frontmatter
	path string
	dir  string // which of queue/in-progress/completed this file lives in
}

func splitFrontmatter(raw string) (string, string, error) {
	if !strings.HasPrefix(raw, "---\n") && !strings.HasPrefix(raw, "---\r\n") {
		return "", "", fmt.Errorf("ticket file missing frontmatter delimiter")
	}
	rest := raw[strings.IndexByte(raw, '\n')+1:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", "", fmt.Errorf("ticket file missing closing frontmatter delimiter")
	}
	fm := rest[:idx]
	remainder := rest[idx+len("\n---"):]
	remainder = strings.TrimPrefix(remainder, "\n")
	remainder = strings.TrimPrefix(remainder, "\r\n")
	return fm, remainder, nil
}

func parseDocument(path, dir string) (*document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fmBlock, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(fmBlock), &fm); err != nil {
		return nil, fmt.Errorf("%s: parse frontmatter: %w", path, err)
	}
	return &document{fm: fm, body: body, path: path, dir: dir}, nil
}

func (d *document) render() string {
	out, err := yaml.Marshal(d.fm)
	if err != nil {
		out = []byte{}
	}
	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(out)
	sb.WriteString("---\n")
	sb.WriteString(d.body)
	return sb.String()
}

func (d *document) save() error {
	return os.WriteFile(d.path, []byte(d.render()), 0o644)
}

func toTicket(d *document) ticketstore.Ticket {
	return ticketstore.Ticket{
		ID:           d.fm.ID,
		TicketType:   d.fm.TicketType,
		Project:      d.fm.Project,
		Priority:     d.fm.Priority,
		Status:       d.fm.Status,
		Step:         d.fm.Step,
		Sessions:     d.fm.Sessions,
		WorktreePath: d.fm.WorktreePath,
		Branch:       d.fm.Branch,
		Filename:     filepath.Base(d.path),
		Filepath:     d.path,
	}
}

func (s *Store) findByID(id string) (*document, error) {
	for _, dir := range []string{queueDir, inProgressDir, completedDir} {
		entries, err := os.ReadDir(filepath.Join(s.root, dir))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			path := filepath.Join(s.root, dir, e.Name())
			doc, err := parseDocument(path, dir)
			if err != nil {
				continue
			}
			if doc.fm.ID == id {
				return doc, nil
			}
		}
	}
	return nil, nil
}

func (s *Store) Get(id string) (*ticketstore.Ticket, error) {
	doc, err := s.findByID(id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	t := toTicket(doc)
	return &t, nil
}

func (s *Store) List(status string) ([]ticketstore.Ticket, error) {
	dirs := []string{queueDir, inProgressDir, completedDir}
	if status != "" {
		dir, ok := dirForStatus(status)
		if !ok {
			return nil, fmt.Errorf("unknown ticket status %q", status)
		}
		dirs = []string{dir}
	}

	var out []ticketstore.Ticket
	for _, dir := range dirs {
		entries, err := os.ReadDir(filepath.Join(s.root, dir))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			doc, err := parseDocument(filepath.Join(s.root, dir, e.Name()), dir)
			if err != nil {
				return nil, err
			}
			out = append(out, toTicket(doc))
		}
	}
	return out, nil
}

func dirForStatus(status string) (string, bool) {
	switch status {
	case "queued":
		return queueDir, true
	case "in_progress":
		return inProgressDir, true
	case "completed":
		return completedDir, true
	default:
		return "", false
	}
}

func (s *Store) move(doc *document, toDir, newStatus string) error {
	oldPath := doc.path
	newPath := filepath.Join(s.root, toDir, filepath.Base(oldPath))
	doc.fm.Status = newStatus
	doc.path = newPath
	doc.dir = toDir
	if err := doc.save(); err != nil {
		return err
	}
	if newPath != oldPath {
		if err := os.Remove(oldPath); err != nil {
			return fmt.Errorf("remove old ticket file %s: %w", oldPath, err)
		}
	}
	return nil
}

func (s *Store) MoveToInProgress(id, step string) error {
	doc, err := s.findByID(id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("ticket %s not found", id)
	}
	doc.fm.Step = step
	return s.move(doc, inProgressDir, "in_progress")
}

func (s *Store) MoveToCompleted(id string) error {
	doc, err := s.findByID(id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("ticket %s not found", id)
	}
	return s.move(doc, completedDir, "completed")
}

func (s *Store) AppendHistory(id, entry string) error {
	doc, err := s.findByID(id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("ticket %s not found", id)
	}

	if !strings.Contains(doc.body, historyHeader) {
		doc.body = strings.TrimRight(doc.body, "\n") + "\n\n" + historyHeader + "\n"
	}
	doc.body = strings.TrimRight(doc.body, "\n") + "\n- " + entry + "\n"
	return doc.save()
}

func (s *Store) SetSessionForStep(id, step, sessionUUID string) error {
	doc, err := s.findByID(id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("ticket %s not found", id)
	}
	if doc.fm.Sessions == nil {
		doc.fm.Sessions = make(map[string]string)
	}
	if existing, ok := doc.fm.Sessions[step]; ok && existing != "" {
		// A session-uuid for this step instance is already set; re-launch
		// of the same step reuses it rather than overwriting (spec §3
		// invariant: "never overwrites one without clearing").
		return nil
	}
	doc.fm.Sessions[step] = sessionUUID
	return doc.save()
}

func (s *Store) SetWorktree(id, worktreePath, branch string) error {
	doc, err := s.findByID(id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("ticket %s not found", id)
	}
	doc.fm.WorktreePath = worktreePath
	doc.fm.Branch = branch
	return doc.save()
}

// historyLines is a test/debug helper returning the raw lines under the
// history section, in file order.
func historyLines(body string) []string {
	idx := strings.Index(body, historyHeader)
	if idx < 0 {
		return nil
	}
	rest := body[idx+len(historyHeader):]
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(rest))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, strings.TrimPrefix(line, "- "))
	}
	return lines
}

var _ ticketstore.Store = (*Store)(nil)
