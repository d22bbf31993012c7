package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrResultNotFound = errors.New("result not found")
	ErrResultExists   = errors.New("result already recorded")
	ErrNotStarted     = errors.New("session not started")
	ErrCompleted      = errors.New("session already completed")
)

// ValidationError rejects an input locally, before any persistence is
// attempted: an out-of-range navigation index, an unknown question, or an
// option key the catalog does not contain.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PersistenceError marks a transient write failure. The in-memory state stays
// authoritative; the write is retried in the background, so the taker loses
// durability, not data.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persist " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }
