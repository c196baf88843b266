package ledger

import (
	"errors"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	busyRetries   = 5
	busyBaseDelay = 20 * time.Millisecond
)

// retryOnBusy runs fn, retrying with exponential backoff while SQLite
// reports the database as busy or locked.
func retryOnBusy(fn func() error) error {
	var err error
	delay := busyBaseDelay
	for attempt := 0; attempt <= busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		diagf("database busy (attempt %d/%d): %v", attempt+1, busyRetries+1, err)
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func isBusy(err error) bool {
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
