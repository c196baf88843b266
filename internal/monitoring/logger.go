// Package monitoring owns the process-level log plumbing: the swappable
// Logf used by the command-line tools and the LogWriters bundle handed to
// each pipeline package's SetLogWriters.
package monitoring

import (
	"io"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogWriters holds the io.Writers for each logging stream.
//
// Ops carries actionable failures (skipped scenes, unreadable rasters),
// Diag carries per-scene progress and run summaries, Trace carries
// per-tile and per-batch telemetry. A nil writer disables its stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// StreamsFor builds LogWriters that all write to w, enabling diag and trace
// only when asked.
func StreamsFor(w io.Writer, verbose, trace bool) LogWriters {
	lw := LogWriters{Ops: w}
	if verbose {
		lw.Diag = w
	}
	if trace {
		lw.Trace = w
	}
	return lw
}

// NewLogger creates a *log.Logger for a given writer, or returns nil if w is nil.
func NewLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}
