// Package capability decides, once per process, whether full camera-based
// detection is possible in this environment. Probing never fails: every
// problem becomes a false field in the report, and strategy selection is a
// total function over the report, so the rest of the application never
// branches on environment.
package capability

import "time"

// OverrideMode lets an operator pin the strategy regardless of probing.
type OverrideMode string

const (
	OverrideAuto           OverrideMode = "auto"
	OverrideForceLive      OverrideMode = "live"
	OverrideForceSimulated OverrideMode = "simulated"
)

// ParseOverrideMode maps a config string onto an OverrideMode. Unrecognized
// values fall back to auto rather than failing startup.
func ParseOverrideMode(s string) OverrideMode {
	switch OverrideMode(s) {
	case OverrideForceLive, OverrideForceSimulated:
		return OverrideMode(s)
	default:
		return OverrideAuto
	}
}

// Report is the immutable result of one environment probe.
type Report struct {
	CameraAvailable        bool         `json:"camera_available"`
	VisionRuntimeAvailable bool         `json:"vision_runtime_available"`
	OverrideMode           OverrideMode `json:"override_mode"`
	ProbedAt               time.Time    `json:"probed_at"`
}
