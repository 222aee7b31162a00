package collector

import (
	"errors"
	"fmt"
)

// ErrAntiBot marks a blocked or challenged session. It escalates to a
// task-level abort instead of being retried indefinitely.
var ErrAntiBot = errors.New("collector: anti-bot interstitial")

// transientError wraps navigation and timeout failures that are worth a
// bounded retry before the item degrades to whatever was already resolved.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return fmt.Sprintf("transient: %v", e.err) }
func (e *transientError) Unwrap() error { return e.err }

// Transient tags an error as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether the error was tagged by Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
