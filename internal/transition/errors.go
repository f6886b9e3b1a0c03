package transition

import "errors"

// Domain errors for the transition engine.
var (
	// ErrConfiguration is returned for a non-positive duration or mismatched
	// channel and target lists.
	ErrConfiguration = errors.New("transition: invalid configuration")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("transition: engine stopped")
)
