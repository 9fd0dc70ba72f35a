package detection

import "errors"

var (
	// ErrEnvironmentUnavailable means the live pipeline cannot run here
	// (no camera, no inference sidecar). Recoverable: re-probe and fall
	// back to the simulated strategy.
	ErrEnvironmentUnavailable = errors.New("detection environment unavailable")

	// ErrInvalidState means a caller used the strategy out of sequence,
	// e.g. NextEvent before Start or after Stop. Programming error, not
	// retried.
	ErrInvalidState = errors.New("invalid strategy state")

	// ErrStopped is returned by NextEvent when Stop interrupts the wait.
	ErrStopped = errors.New("strategy stopped")
)
