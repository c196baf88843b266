package predict

import (
	"log"
	"sync"

	"github.com/hydrosat/patchseg/internal/monitoring"
)

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the logging streams for the predict package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w monitoring.LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = monitoring.NewLogger("[predict] ", w.Ops)
	diagLogger = monitoring.NewLogger("[predict] ", w.Diag)
	traceLogger = monitoring.NewLogger("[predict] ", w.Trace)
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

// diagf logs to the diag stream (tile grid layout per scene).
func diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// tracef logs to the trace stream (one line per tile).
func tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
