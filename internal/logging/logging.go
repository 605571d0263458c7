// Package logging builds the orchestrator's shared zerolog.Logger, used by
// both cmd/server and cmd/cli so every component logs in the same shape.
// Grounded on the pack's zerolog setup idiom (console writer for a human,
// structured JSON otherwise).
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to stderr. pretty switches between a
// colorized console writer (suitable for an interactive terminal) and
// structured JSON (suitable for a daemon whose stderr is captured by a
// supervisor).
func New(level zerolog.Level, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// ParseLevel parses a log level string (case-insensitive), defaulting to
// InfoLevel for anything unrecognized.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
