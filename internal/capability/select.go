package capability

import (
	"go.uber.org/zap"

	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/detection"
)

// StrategyFactory builds fresh strategy instances. Fallback needs a new
// instance each time, so selection hands out constructors rather than
// sharing one strategy across restarts.
type StrategyFactory struct {
	NewLive      func() detection.Strategy
	NewSimulated func() detection.Strategy
}

// SelectStrategy maps a report onto a strategy. Total and deterministic:
//
//	force simulated          -> simulated
//	force live               -> live (operator's call; Start fails fast if wrong)
//	auto, camera && runtime  -> live
//	auto, anything missing   -> simulated
func SelectStrategy(report Report, f StrategyFactory) detection.Strategy {
	switch report.OverrideMode {
	case OverrideForceSimulated:
		return f.NewSimulated()
	case OverrideForceLive:
		return f.NewLive()
	}

	if report.CameraAvailable && report.VisionRuntimeAvailable {
		return f.NewLive()
	}
	return f.NewSimulated()
}

// LogSelection records which variant won and why.
func LogSelection(logger *zap.Logger, report Report, s detection.Strategy) {
	logger.Info("Detection strategy selected",
		zap.String("strategy", string(s.Source())),
		zap.String("override", string(report.OverrideMode)),
		zap.Bool("camera", report.CameraAvailable),
		zap.Bool("vision_runtime", report.VisionRuntimeAvailable))
}
