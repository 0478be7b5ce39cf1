// Package logger provides structured logging for vamdeps
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error, disabled
	Pretty bool   // console output for interactive use
	Output io.Writer
	RunID  string
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "d", "verbose", "v":
		return zerolog.DebugLevel
	case "warn", "warning", "w":
		return zerolog.WarnLevel
	case "error", "e":
		return zerolog.ErrorLevel
	case "disabled", "quiet", "q":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New creates the root logger. Unlike a global logger it never touches
// zerolog's package-level state, so tests can build as many as they like.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	ctx := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "vamdeps")
	if cfg.RunID != "" {
		ctx = ctx.Str("run_id", cfg.RunID)
	}
	return ctx.Logger()
}

// Component returns a child logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// LogPhase logs the completion of a pipeline phase.
func LogPhase(l zerolog.Logger, phase string, duration time.Duration, count int, err error) {
	event := l.Info()
	if err != nil {
		event = l.Error().Err(err)
	}
	event.
		Str("event", "phase_complete").
		Str("phase", phase).
		Dur("duration_ms", duration).
		Int("count", count).
		Msg("phase completed")
}
