package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/cache"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/capability"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/detection"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/metrics"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/models"
)

const lastEventKey = "drowsisense:last_event"

// EventStore is the slice of the database the engine writes through.
type EventStore interface {
	InsertEvent(ctx context.Context, e models.Event) error
	CreateSession(ctx context.Context, s models.Session) error
	StopSession(ctx context.Context, id string) error
}

// AlertTrigger dispatches one alert, respecting its own cooldown.
type AlertTrigger interface {
	Trigger(ctx context.Context, sessionID, alertType, severity, description string, ev detection.Event) (bool, error)
}

// Config carries the alerting thresholds. Thresholds count consecutive
// events, mirroring the frame counters of the vision pipeline.
type Config struct {
	DrowsyFrames int
	YawnFrames   int
}

// Engine owns the single active detection strategy. It probes the
// environment once at start, selects a strategy, and keeps consuming
// events until stopped. When the live pipeline dies mid-run the engine
// re-probes and falls back to simulated instead of crashing; the degraded
// flag tells the dashboard it is watching demo telemetry.
type Engine struct {
	cfg     Config
	prober  *capability.Prober
	factory capability.StrategyFactory
	store   EventStore
	alerts  AlertTrigger
	cache   cache.Provider
	logger  *zap.Logger

	broadcast func(detection.Event)

	mu        sync.RWMutex
	report    capability.Report
	strategy  detection.Strategy
	degraded  bool
	sessionID string
	startedAt time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	drowsyCounter int
	yawnCounter   int
}

func New(cfg Config, prober *capability.Prober, factory capability.StrategyFactory, store EventStore, alerts AlertTrigger, cacheProvider cache.Provider, broadcast func(detection.Event), logger *zap.Logger) *Engine {
	if cfg.DrowsyFrames <= 0 {
		cfg.DrowsyFrames = 30
	}
	if cfg.YawnFrames <= 0 {
		cfg.YawnFrames = 3
	}
	if broadcast == nil {
		broadcast = func(detection.Event) {}
	}
	return &Engine{
		cfg:       cfg,
		prober:    prober,
		factory:   factory,
		store:     store,
		alerts:    alerts,
		cache:     cacheProvider,
		broadcast: broadcast,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start probes the environment, selects and starts a strategy, and spawns
// the monitoring loop. A live strategy that refuses to start triggers an
// immediate fallback to simulated; Start itself only fails on programmer
// error.
func (e *Engine) Start(ctx context.Context) error {
	report := e.prober.Probe(ctx)
	strategy := capability.SelectStrategy(report, e.factory)
	capability.LogSelection(e.logger, report, strategy)

	degraded := false
	if err := strategy.Start(ctx); err != nil {
		if !errors.Is(err, detection.ErrEnvironmentUnavailable) {
			return err
		}
		e.logger.Warn("Live detection unavailable at start, falling back to simulated", zap.Error(err))
		metrics.ObserveFallback()
		strategy.Stop()

		strategy = e.factory.NewSimulated()
		if err := strategy.Start(ctx); err != nil {
			return err
		}
		degraded = true
	}

	e.mu.Lock()
	e.report = report
	e.strategy = strategy
	e.degraded = degraded
	e.startedAt = time.Now()
	e.mu.Unlock()

	metrics.SetActiveStrategy(string(strategy.Source()))

	e.wg.Add(1)
	go e.loop()
	return nil
}

func (e *Engine) loop() {
	defer e.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-e.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		e.mu.RLock()
		strategy := e.strategy
		e.mu.RUnlock()

		ev, err := strategy.NextEvent(ctx)
		if err != nil {
			switch {
			case errors.Is(err, detection.ErrEnvironmentUnavailable):
				if !e.fallback(ctx) {
					return
				}
				continue
			case errors.Is(err, detection.ErrStopped), errors.Is(err, context.Canceled):
				return
			default:
				e.logger.Error("Detection loop error", zap.Error(err))
				return
			}
		}

		e.handleEvent(ctx, ev)
	}
}

// fallback re-probes and swaps in a fresh simulated strategy. Logged once
// per occurrence; returns false only when the engine is shutting down.
func (e *Engine) fallback(ctx context.Context) bool {
	select {
	case <-e.stopCh:
		return false
	default:
	}

	e.logger.Warn("Live detection failed, re-probing and falling back to simulated")
	metrics.ObserveFallback()

	e.mu.Lock()
	e.strategy.Stop()
	e.report = e.prober.Probe(ctx)
	e.strategy = e.factory.NewSimulated()
	e.degraded = true
	strategy := e.strategy
	e.mu.Unlock()

	if err := strategy.Start(ctx); err != nil {
		e.logger.Error("Simulated fallback failed to start", zap.Error(err))
		return false
	}

	metrics.SetActiveStrategy(string(detection.SourceSimulated))
	return true
}

func (e *Engine) handleEvent(ctx context.Context, ev detection.Event) {
	metrics.ObserveEvent(string(ev.State), string(ev.Source))
	e.broadcast(ev)
	e.cacheLastEvent(ctx, ev)

	e.mu.RLock()
	sessionID := e.sessionID
	e.mu.RUnlock()

	if sessionID != "" {
		if err := e.store.InsertEvent(ctx, models.EventFromDetection(sessionID, ev)); err != nil {
			e.logger.Error("Failed to persist event", zap.Error(err))
		}
	}

	e.applyThresholds(ctx, sessionID, ev)
}

// applyThresholds mirrors the consecutive-frame counters of the original
// vision loop: a run of drowsy events long enough fires a high-severity
// alert, repeated yawning a medium one. Counters reset after each alert.
func (e *Engine) applyThresholds(ctx context.Context, sessionID string, ev detection.Event) {
	fireDrowsy := false
	fireYawn := false

	e.mu.Lock()
	if ev.State == detection.StateDrowsy {
		e.drowsyCounter++
		if e.drowsyCounter >= e.cfg.DrowsyFrames {
			fireDrowsy = true
			e.drowsyCounter = 0
		}
	} else {
		e.drowsyCounter = 0
	}

	if ev.IsYawning {
		e.yawnCounter++
		if e.yawnCounter >= e.cfg.YawnFrames {
			fireYawn = true
			e.yawnCounter = 0
		}
	} else {
		e.yawnCounter = 0
	}
	e.mu.Unlock()

	if fireDrowsy {
		if _, err := e.alerts.Trigger(ctx, sessionID, "drowsiness", "high", "Drowsiness detected!", ev); err != nil {
			metrics.ObserveAlertFailure()
			e.logger.Error("Drowsiness alert dispatch failed", zap.Error(err))
		}
	}
	if fireYawn {
		if _, err := e.alerts.Trigger(ctx, sessionID, "yawning", "medium", "Excessive yawning detected!", ev); err != nil {
			metrics.ObserveAlertFailure()
			e.logger.Error("Yawning alert dispatch failed", zap.Error(err))
		}
	}
}

func (e *Engine) cacheLastEvent(ctx context.Context, ev detection.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, lastEventKey, data, time.Minute); err != nil {
		e.logger.Debug("Cache write failed", zap.Error(err))
	}
}

// StartSession begins persisting events under a new monitoring session.
// Only one session is active at a time; starting a new one stops the old.
func (e *Engine) StartSession(ctx context.Context, notes string) (models.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessionID != "" {
		if err := e.store.StopSession(ctx, e.sessionID); err != nil {
			e.logger.Warn("Failed to stop previous session", zap.String("session", e.sessionID), zap.Error(err))
		}
	}

	session := models.Session{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		Status:    "active",
		Source:    string(e.strategy.Source()),
		Notes:     notes,
	}
	if err := e.store.CreateSession(ctx, session); err != nil {
		return models.Session{}, err
	}

	e.sessionID = session.ID
	e.drowsyCounter = 0
	e.yawnCounter = 0

	e.logger.Info("Monitoring session started", zap.String("session", session.ID))
	return session, nil
}

// StopSession ends the given session; if it is the active one, events stop
// being persisted until the next StartSession.
func (e *Engine) StopSession(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.StopSession(ctx, id); err != nil {
		return err
	}
	if e.sessionID == id {
		e.sessionID = ""
	}
	e.logger.Info("Monitoring session stopped", zap.String("session", id))
	return nil
}

// Report returns the capability report from the most recent probe.
func (e *Engine) Report() capability.Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.report
}

// ActiveStrategy names the running variant.
func (e *Engine) ActiveStrategy() detection.Source {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.strategy == nil {
		return ""
	}
	return e.strategy.Source()
}

// Degraded reports whether the engine fell back to simulated after a live
// failure (or a failed live start). The dashboard renders demo status.
func (e *Engine) Degraded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.degraded
}

// ActiveSession returns the id of the session being persisted, if any.
func (e *Engine) ActiveSession() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessionID
}

// Uptime since the engine started.
func (e *Engine) Uptime() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.startedAt.IsZero() {
		return 0
	}
	return time.Since(e.startedAt)
}

// Stop ends the loop and the active strategy. Idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)

		e.mu.RLock()
		strategy := e.strategy
		e.mu.RUnlock()
		if strategy != nil {
			strategy.Stop()
		}

		e.wg.Wait()

		// The loop may have swapped in a fallback strategy concurrently
		// with shutdown; stopping twice is harmless.
		e.mu.RLock()
		strategy = e.strategy
		e.mu.RUnlock()
		if strategy != nil {
			strategy.Stop()
		}

		e.logger.Info("Detection engine stopped")
	})
}
