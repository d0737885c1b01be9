package engine

import (
	"time"

	"github.com/stridecoach/setback/internal/store"
)

const (
	retryAttempts = 3
	retryBase     = 50 * time.Millisecond
)

// withRetry runs fn up to three times with doubling backoff, retrying only
// conflict and transient store errors. Validation and not-found errors
// surface immediately.
func (eng *Engine) withRetry(fn func() error) error {
	var err error
	delay := retryBase
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil || !store.IsRetryable(err) {
			return err
		}
		if attempt < retryAttempts {
			eng.log.Warnw("retrying store write", "attempt", attempt, "error", err)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
