package capability

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ProbeFunc answers whether one capability is present. Implementations
// absorb their own errors; a probe that cannot tell reports false.
type ProbeFunc func(ctx context.Context) bool

// Prober runs the environment checks behind a Report. The probes are
// injected so tests (and future variants) never depend on real hardware.
type Prober struct {
	override      OverrideMode
	cameraProbe   ProbeFunc
	visionProbe   ProbeFunc
	cameraTimeout time.Duration
	visionTimeout time.Duration
	logger        *zap.Logger
}

func NewProber(override OverrideMode, camera, vision ProbeFunc, cameraTimeout, visionTimeout time.Duration, logger *zap.Logger) *Prober {
	if cameraTimeout <= 0 {
		cameraTimeout = 3 * time.Second
	}
	if visionTimeout <= 0 {
		visionTimeout = 2 * time.Second
	}
	return &Prober{
		override:      override,
		cameraProbe:   camera,
		visionProbe:   vision,
		cameraTimeout: cameraTimeout,
		visionTimeout: visionTimeout,
		logger:        logger,
	}
}

// Probe inspects the environment and always succeeds. An explicit override
// skips the hardware checks entirely; otherwise each probe runs under its
// own timeout and a timeout counts as absent.
func (p *Prober) Probe(ctx context.Context) Report {
	report := Report{
		OverrideMode: p.override,
		ProbedAt:     time.Now(),
	}

	if p.override != OverrideAuto {
		p.logger.Info("Detection mode pinned by override, skipping probes",
			zap.String("override", string(p.override)))
		return report
	}

	if p.cameraProbe != nil {
		cameraCtx, cancel := context.WithTimeout(ctx, p.cameraTimeout)
		report.CameraAvailable = p.cameraProbe(cameraCtx)
		cancel()
	}

	if p.visionProbe != nil {
		visionCtx, cancel := context.WithTimeout(ctx, p.visionTimeout)
		report.VisionRuntimeAvailable = p.visionProbe(visionCtx)
		cancel()
	}

	p.logger.Info("Environment probed",
		zap.Bool("camera", report.CameraAvailable),
		zap.Bool("vision_runtime", report.VisionRuntimeAvailable))

	return report
}
