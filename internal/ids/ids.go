// Package ids provides identifier generation and wall-clock access as
// injectable leaves, so higher packages can be tested deterministically.
package ids

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts wall-clock time so tests can control it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock returns a constant time; it moves only when Set or Advance is
// called.
// Not safe for concurrent use across goroutines without external locking.
type FixedClock struct {
	t time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{t: t} }

func (c *FixedClock) Now() time.Time { return c.t }

func (c *FixedClock) Set(t time.Time) { c.t = t }

func (c *FixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// Generator produces fresh identifiers. AgentID and SessionUUID are both
// version-4 UUIDs; they are kept as distinct method names because they
// identify different things (an orchestrator-owned record vs. the LLM
// tool's own conversation id) even though the underlying format matches.
type Generator interface {
	AgentID() string
	SessionUUID() string
}

// UUIDGenerator generates RFC 4122 version-4 UUIDs via google/uuid.
type UUIDGenerator struct{}

func (UUIDGenerator) AgentID() string { return uuid.NewString() }

func (UUIDGenerator) SessionUUID() string { return uuid.NewString() }

// IsValidUUID reports whether s parses as any UUID version, used by
// relaunch's resume-uuid validation path.
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
