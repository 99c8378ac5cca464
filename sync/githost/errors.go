package githost

import "fmt"

// HeadMovedError reports an optimistic-concurrency
// rejection: the branch advanced past the expected head
// while a single-commit push was in flight. Callers
// decide whether to re-read and retry; the push layer
// never retries on its own.
type HeadMovedError struct {
	// Branch that moved.
	Branch string
	// ExpectedHead is the hash the push was predicated
	// on.
	ExpectedHead string
	// Err is the underlying host error.
	Err error
}

// Error implements the error interface.
func (e *HeadMovedError) Error() string {
	return fmt.Sprintf(
		"branch %s moved past expected head %s: %v",
		e.Branch, e.ExpectedHead, e.Err,
	)
}

// Unwrap returns the underlying host error.
func (e *HeadMovedError) Unwrap() error {
	return e.Err
}
