package detection

import (
	"context"
	"time"
)

// State classifies one observation of the driver.
type State string

const (
	StateAlert   State = "alert"
	StateDrowsy  State = "drowsy"
	StateUnknown State = "unknown"
)

// Source records which pipeline produced an event. Every event carries it
// so the dashboard can never pass off simulated telemetry as live.
type Source string

const (
	SourceLive      Source = "live"
	SourceSimulated Source = "simulated"
)

// Event is one observation emitted by a detection strategy.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	State      State     `json:"state"`
	Confidence float64   `json:"confidence"`
	Source     Source    `json:"source"`
	IsYawning  bool      `json:"is_yawning,omitempty"`
}

// Strategy is the contract every detection variant implements. Exactly one
// strategy is active per process; consumers never branch on which one.
//
// Lifecycle: Created -> Started -> Stopped. NextEvent is only valid while
// Started. Stop is valid from any state, idempotent, and unblocks an
// in-flight NextEvent within one tick (simulated) or one frame timeout (live).
type Strategy interface {
	// Start acquires underlying resources. Fails with
	// ErrEnvironmentUnavailable when the environment cannot support the
	// variant; the caller should then re-probe and fall back.
	Start(ctx context.Context) error

	// NextEvent blocks until the next observation is available or the
	// strategy is stopped.
	NextEvent(ctx context.Context) (Event, error)

	// Stop releases all resources. Calling it twice has no additional effect.
	Stop()

	// Source identifies the variant for logging and the capability endpoint.
	Source() Source
}

type lifecycle int32

const (
	stateCreated lifecycle = iota
	stateStarted
	stateStopped
)
