package orchestrator

import (
	"errors"
	"fmt"
)

// ErrSessionNotReady is returned when chat or upload is attempted before a
// successful initialization. Recoverable: initialize and retry.
var ErrSessionNotReady = errors.New("session not initialized")

// InitializationError wraps any provisioning failure during Initialize.
// The session remains uninitialized; the caller may retry with adjusted
// parameters.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// IsInitializationError reports whether err is an initialization failure.
func IsInitializationError(err error) bool {
	var ie *InitializationError
	return errors.As(err, &ie)
}
