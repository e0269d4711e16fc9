// Package diag provides the --verbose tracing knob: leveled,
// zero-overhead-when-off diagnostics for each compiler/runner stage.
// Grounded on runtime/executor.Config's Debug/Telemetry levels.
package diag

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Level controls how much tracing a Logger emits.
type Level int

const (
	Off     Level = iota // no tracing (default)
	Paths                // stage entry/exit
	Verbose              // stage entry/exit plus evaluated values
)

// Logger writes leveled trace lines to an io.Writer, each prefixed with
// its stage name in brackets; no timestamp is written.
type Logger struct {
	Level  Level
	Out    io.Writer
	nowFn  func() time.Time
}

func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{Level: level, Out: out, nowFn: time.Now}
}

// Stage logs a stage-entry trace at Paths level or above.
func (l *Logger) Stage(name string, format string, args ...any) {
	if l == nil || l.Level < Paths {
		return
	}
	fmt.Fprintf(l.Out, "[%s] %s\n", name, fmt.Sprintf(format, args...))
}

// Value logs an evaluated-value trace, only at Verbose level.
func (l *Logger) Value(name string, format string, args ...any) {
	if l == nil || l.Level < Verbose {
		return
	}
	fmt.Fprintf(l.Out, "[%s] %s\n", name, fmt.Sprintf(format, args...))
}
