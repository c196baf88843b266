package pipeline

import (
	"log"
	"sync"

	"github.com/hydrosat/patchseg/internal/calib"
	"github.com/hydrosat/patchseg/internal/ledger"
	"github.com/hydrosat/patchseg/internal/monitoring"
	"github.com/hydrosat/patchseg/internal/predict"
	"github.com/hydrosat/patchseg/internal/scene"
)

var (
	mu         sync.RWMutex
	opsLogger  *log.Logger
	diagLogger *log.Logger
)

// SetLogWriters configures the logging streams for the pipeline package and
// every package it drives. Pass nil for any writer to disable that stream.
func SetLogWriters(w monitoring.LogWriters) {
	mu.Lock()
	opsLogger = monitoring.NewLogger("[pipeline] ", w.Ops)
	diagLogger = monitoring.NewLogger("[pipeline] ", w.Diag)
	mu.Unlock()

	calib.SetLogWriters(w)
	scene.SetLogWriters(w)
	predict.SetLogWriters(w)
	ledger.SetLogWriters(w)
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

// diagf logs to the diag stream (patch counts, epoch summaries, elapsed times).
func diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
