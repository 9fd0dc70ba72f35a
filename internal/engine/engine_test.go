package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/cache"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/capability"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/detection"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/models"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/services"
)

// scriptedStrategy replays a fixed set of events, then blocks until stopped.
type scriptedStrategy struct {
	source   detection.Source
	startErr error
	events   chan detection.Event
	stopCh   chan struct{}
	stopOnce sync.Once
	started  bool
}

func newScripted(source detection.Source, startErr error, events ...detection.Event) *scriptedStrategy {
	s := &scriptedStrategy{
		source:   source,
		startErr: startErr,
		events:   make(chan detection.Event, len(events)+1),
		stopCh:   make(chan struct{}),
	}
	for _, ev := range events {
		s.events <- ev
	}
	return s
}

func (s *scriptedStrategy) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *scriptedStrategy) NextEvent(ctx context.Context) (detection.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.stopCh:
		return detection.Event{}, detection.ErrStopped
	case <-ctx.Done():
		return detection.Event{}, ctx.Err()
	}
}

func (s *scriptedStrategy) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *scriptedStrategy) Source() detection.Source { return s.source }

// failingStrategy emits its events, then reports the environment gone.
type failingStrategy struct {
	*scriptedStrategy
}

func (f *failingStrategy) NextEvent(ctx context.Context) (detection.Event, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	default:
	}
	select {
	case <-f.stopCh:
		return detection.Event{}, detection.ErrStopped
	default:
		return detection.Event{}, detection.ErrEnvironmentUnavailable
	}
}

type memStore struct {
	mu       sync.Mutex
	events   []models.Event
	sessions []models.Session
	stopped  []string
}

func (m *memStore) InsertEvent(_ context.Context, e models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memStore) CreateSession(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *memStore) StopSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = append(m.stopped, id)
	return nil
}

func (m *memStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type recordingAlerts struct {
	mu    sync.Mutex
	fired []string
}

func (r *recordingAlerts) Trigger(_ context.Context, _, alertType, _, _ string, _ detection.Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, alertType)
	return true, nil
}

func (r *recordingAlerts) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func noopProber(t *testing.T) *capability.Prober {
	t.Helper()
	off := func(context.Context) bool { return false }
	return capability.NewProber(capability.OverrideAuto, off, off, time.Second, time.Second, zap.NewNop())
}

func drowsyEvent(source detection.Source) detection.Event {
	return detection.Event{
		Timestamp:  time.Now(),
		State:      detection.StateDrowsy,
		Confidence: 0.9,
		Source:     source,
	}
}

func collectBroadcasts() (func(detection.Event), func() []detection.Event) {
	var mu sync.Mutex
	var got []detection.Event
	record := func(ev detection.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	}
	snapshot := func() []detection.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]detection.Event(nil), got...)
	}
	return record, snapshot
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestEngineSelectsSimulatedWhenProbesFail(t *testing.T) {
	store := &memStore{}
	alerts := &recordingAlerts{}
	record, snapshot := collectBroadcasts()

	sim := newScripted(detection.SourceSimulated, nil, drowsyEvent(detection.SourceSimulated))
	factory := capability.StrategyFactory{
		NewLive:      func() detection.Strategy { t.Fatal("live must not be selected"); return nil },
		NewSimulated: func() detection.Strategy { return sim },
	}

	eng := New(Config{DrowsyFrames: 100, YawnFrames: 100}, noopProber(t), factory, store, alerts, cache.NewMemoryProvider(), record, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop()

	waitFor(t, func() bool { return len(snapshot()) > 0 }, "no events broadcast")

	assert.Equal(t, detection.SourceSimulated, eng.ActiveStrategy())
	assert.False(t, eng.Degraded(), "auto-selected simulated is normal, not degraded")
	for _, ev := range snapshot() {
		assert.Equal(t, detection.SourceSimulated, ev.Source)
	}
}

func TestEngineFallsBackWhenLiveStartFails(t *testing.T) {
	store := &memStore{}
	alerts := &recordingAlerts{}
	record, snapshot := collectBroadcasts()

	live := newScripted(detection.SourceLive, detection.ErrEnvironmentUnavailable)
	sim := newScripted(detection.SourceSimulated, nil, drowsyEvent(detection.SourceSimulated))
	factory := capability.StrategyFactory{
		NewLive:      func() detection.Strategy { return live },
		NewSimulated: func() detection.Strategy { return sim },
	}

	on := func(context.Context) bool { return true }
	prober := capability.NewProber(capability.OverrideAuto, on, on, time.Second, time.Second, zap.NewNop())

	eng := New(Config{DrowsyFrames: 100, YawnFrames: 100}, prober, factory, store, alerts, cache.NewMemoryProvider(), record, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop()

	waitFor(t, func() bool { return len(snapshot()) > 0 }, "no events after fallback")

	assert.Equal(t, detection.SourceSimulated, eng.ActiveStrategy())
	assert.True(t, eng.Degraded(), "fallback after a live failure must flag degraded mode")
	for _, ev := range snapshot() {
		assert.Equal(t, detection.SourceSimulated, ev.Source)
	}
}

func TestEngineFallsBackWhenLiveDiesMidRun(t *testing.T) {
	store := &memStore{}
	alerts := &recordingAlerts{}
	record, snapshot := collectBroadcasts()

	live := &failingStrategy{newScripted(detection.SourceLive, nil, drowsyEvent(detection.SourceLive))}
	sim := newScripted(detection.SourceSimulated, nil, drowsyEvent(detection.SourceSimulated))
	factory := capability.StrategyFactory{
		NewLive:      func() detection.Strategy { return live },
		NewSimulated: func() detection.Strategy { return sim },
	}

	on := func(context.Context) bool { return true }
	prober := capability.NewProber(capability.OverrideAuto, on, on, time.Second, time.Second, zap.NewNop())

	eng := New(Config{DrowsyFrames: 100, YawnFrames: 100}, prober, factory, store, alerts, cache.NewMemoryProvider(), record, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop()

	waitFor(t, func() bool {
		events := snapshot()
		for _, ev := range events {
			if ev.Source == detection.SourceSimulated {
				return true
			}
		}
		return false
	}, "engine never produced simulated events after live died")

	assert.Equal(t, detection.SourceSimulated, eng.ActiveStrategy())
	assert.True(t, eng.Degraded())
}

func TestEngineFiresDrowsinessAlertAfterThreshold(t *testing.T) {
	store := &memStore{}
	alerts := &recordingAlerts{}
	record, _ := collectBroadcasts()

	events := make([]detection.Event, 0, 5)
	for i := 0; i < 5; i++ {
		events = append(events, drowsyEvent(detection.SourceSimulated))
	}
	sim := newScripted(detection.SourceSimulated, nil, events...)
	factory := capability.StrategyFactory{
		NewLive:      func() detection.Strategy { return newScripted(detection.SourceLive, detection.ErrEnvironmentUnavailable) },
		NewSimulated: func() detection.Strategy { return sim },
	}

	eng := New(Config{DrowsyFrames: 3, YawnFrames: 100}, noopProber(t), factory, store, alerts, cache.NewMemoryProvider(), record, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop()

	waitFor(t, func() bool { return len(alerts.types()) > 0 }, "no alert after consecutive drowsy events")
	assert.Contains(t, alerts.types(), "drowsiness")
}

// fkAlertStore rejects alerts without a session, like the real schema.
type fkAlertStore struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (f *fkAlertStore) InsertAlert(_ context.Context, a models.Alert) (int64, error) {
	if a.SessionID == "" {
		return 0, errors.New(`insert or update on table "alerts" violates foreign key constraint "alerts_session_id_fkey"`)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return int64(len(f.alerts)), nil
}

func (f *fkAlertStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func TestEngineSessionlessAlertStillReachesDashboard(t *testing.T) {
	store := &memStore{}
	alertStore := &fkAlertStore{}

	var mu sync.Mutex
	var broadcasted []models.Alert
	svc := services.NewAlertService(alertStore, time.Hour, func(a models.Alert) {
		mu.Lock()
		defer mu.Unlock()
		broadcasted = append(broadcasted, a)
	}, zap.NewNop())

	events := make([]detection.Event, 0, 3)
	for i := 0; i < 3; i++ {
		events = append(events, drowsyEvent(detection.SourceSimulated))
	}
	sim := newScripted(detection.SourceSimulated, nil, events...)
	factory := capability.StrategyFactory{
		NewLive:      func() detection.Strategy { return newScripted(detection.SourceLive, detection.ErrEnvironmentUnavailable) },
		NewSimulated: func() detection.Strategy { return sim },
	}

	eng := New(Config{DrowsyFrames: 3, YawnFrames: 100}, noopProber(t), factory, store, svc, cache.NewMemoryProvider(), nil, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(broadcasted) > 0
	}, "alert outside a session never reached the broadcast hook")

	mu.Lock()
	alert := broadcasted[0]
	mu.Unlock()
	assert.Equal(t, services.AlertTypeDrowsiness, alert.Type)
	assert.Empty(t, alert.SessionID)
	assert.Equal(t, 0, alertStore.count(), "nothing to persist without a session row")
}

func TestEnginePersistsEventsOnlyDuringSession(t *testing.T) {
	store := &memStore{}
	alerts := &recordingAlerts{}
	record, snapshot := collectBroadcasts()

	sim := newScripted(detection.SourceSimulated, nil)
	factory := capability.StrategyFactory{
		NewLive:      func() detection.Strategy { return newScripted(detection.SourceLive, detection.ErrEnvironmentUnavailable) },
		NewSimulated: func() detection.Strategy { return sim },
	}

	eng := New(Config{DrowsyFrames: 100, YawnFrames: 100}, noopProber(t), factory, store, alerts, cache.NewMemoryProvider(), record, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))
	defer eng.Stop()

	// No session yet: event flows to broadcast but not to the store.
	sim.events <- drowsyEvent(detection.SourceSimulated)
	waitFor(t, func() bool { return len(snapshot()) == 1 }, "first event not broadcast")
	assert.Equal(t, 0, store.eventCount())

	session, err := eng.StartSession(context.Background(), "test drive")
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, string(detection.SourceSimulated), session.Source)

	sim.events <- drowsyEvent(detection.SourceSimulated)
	waitFor(t, func() bool { return store.eventCount() == 1 }, "session event not persisted")

	store.mu.Lock()
	persisted := store.events[0]
	store.mu.Unlock()
	assert.Equal(t, session.ID, persisted.SessionID)
	assert.Equal(t, string(detection.SourceSimulated), persisted.Source)

	require.NoError(t, eng.StopSession(context.Background(), session.ID))
	assert.Empty(t, eng.ActiveSession())
}

func TestEngineStopIsIdempotent(t *testing.T) {
	store := &memStore{}
	alerts := &recordingAlerts{}

	sim := newScripted(detection.SourceSimulated, nil)
	factory := capability.StrategyFactory{
		NewLive:      func() detection.Strategy { return newScripted(detection.SourceLive, detection.ErrEnvironmentUnavailable) },
		NewSimulated: func() detection.Strategy { return sim },
	}

	eng := New(Config{}, noopProber(t), factory, store, alerts, cache.NewMemoryProvider(), nil, zap.NewNop())
	require.NoError(t, eng.Start(context.Background()))

	eng.Stop()
	eng.Stop()
}
