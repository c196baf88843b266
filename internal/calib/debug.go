package calib

import (
	"log"
	"sync"

	"github.com/hydrosat/patchseg/internal/monitoring"
)

var (
	mu         sync.RWMutex
	opsLogger  *log.Logger
	diagLogger *log.Logger
)

// SetLogWriters configures the logging streams for the calib package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w monitoring.LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = monitoring.NewLogger("[calib] ", w.Ops)
	diagLogger = monitoring.NewLogger("[calib] ", w.Diag)
}

// opsf logs to the ops stream (actionable warnings, errors).
func opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// diagf logs to the diag stream (table loads, calibration summaries).
func diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
