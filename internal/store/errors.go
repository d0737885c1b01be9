package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals that the referenced record does not exist. Callers
	// get it for missing events and for writes against resolved events, which
	// are gone as far as mutation is concerned.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals that a concurrent writer got there first.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a record that violates a data-model invariant.
// Field names the first offending field in its wire form (snake_case).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransientError wraps a database error that is worth retrying, typically
// SQLite lock contention.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is safe to retry: transient database
// contention or a lost write race. Validation and not-found errors are not.
func IsRetryable(err error) bool {
	var te *TransientError
	return errors.As(err, &te) || errors.Is(err, ErrConflict)
}

// classify wraps SQLite contention errors as TransientError so the retry
// layer can distinguish them from permanent failures. Everything else passes
// through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") {
		return &TransientError{Err: err}
	}
	return err
}
