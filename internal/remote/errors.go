package remote

import (
	"errors"
	"fmt"
)

// NetworkError marks a transient failure: the backend was unreachable or
// answered with a retryable status. Safe to retry via the sync engine.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteRejectedError marks a permanent server-side refusal (validation,
// auth, row-level security). Retrying the same payload will not succeed.
type RemoteRejectedError struct {
	Status int
	Body   string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("remote rejected (status %d): %s", e.Status, e.Body)
}

// IsNetwork reports whether err is (or wraps) a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRejected reports whether err is (or wraps) a RemoteRejectedError.
func IsRejected(err error) bool {
	var re *RemoteRejectedError
	return errors.As(err, &re)
}
