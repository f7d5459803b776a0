package research

import "errors"

var (
	ErrAlreadyRunning    = errors.New("research already running for this listing")
	ErrTooManyConcurrent = errors.New("too many concurrent research jobs")
	ErrEntityNotFound    = errors.New("listing not found")
	errShutdown          = errors.New("research stopped: service shutting down")
)
