package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Verbosity selects which gateway diagnostics are emitted.
type Verbosity int

const (
	// VerbositySilent emits nothing from the connection path.
	VerbositySilent Verbosity = iota
	// VerbosityEvents emits connection lifecycle and per-connection error events.
	VerbosityEvents
	// VerbosityTrace additionally emits every inbound and outbound message.
	VerbosityTrace
)

// ParseVerbosity accepts the symbolic names or their numeric levels.
func ParseVerbosity(value string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "silent", "0":
		return VerbositySilent, nil
	case "events", "1":
		return VerbosityEvents, nil
	case "trace", "2":
		return VerbosityTrace, nil
	default:
		return VerbositySilent, fmt.Errorf("unknown verbosity %q (want silent, events or trace)", value)
	}
}

func (v Verbosity) String() string {
	switch v {
	case VerbositySilent:
		return "silent"
	case VerbosityEvents:
		return "events"
	case VerbosityTrace:
		return "trace"
	default:
		return fmt.Sprintf("verbosity(%d)", int(v))
	}
}

// Gate hands out loggers that are no-ops below the configured verbosity.
type Gate struct {
	verbosity Verbosity
	events    *zap.Logger
	trace     *zap.Logger
}

// NewGate creates a Gate over logger.
func NewGate(logger *zap.Logger, verbosity Verbosity) *Gate {
	g := &Gate{
		verbosity: verbosity,
		events:    zap.NewNop(),
		trace:     zap.NewNop(),
	}

	if verbosity >= VerbosityEvents {
		g.events = logger
	}

	if verbosity >= VerbosityTrace {
		g.trace = logger
	}

	return g
}

// Verbosity returns the configured level.
func (g *Gate) Verbosity() Verbosity {
	return g.verbosity
}

// Events returns the logger for connection and error events.
func (g *Gate) Events() *zap.Logger {
	return g.events
}

// Trace returns the logger for full message tracing.
func (g *Gate) Trace() *zap.Logger {
	return g.trace
}

// Tracing reports whether message tracing is enabled.
func (g *Gate) Tracing() bool {
	return g.verbosity >= VerbosityTrace
}
