package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSimulated(t *testing.T) *Simulated {
	t.Helper()
	s := NewSimulated(SimulatedConfig{Tick: time.Millisecond, Seed: 42}, zap.NewNop())
	t.Cleanup(s.Stop)
	return s
}

func TestSimulatedEventsAreTagged(t *testing.T) {
	s := newTestSimulated(t)
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 50; i++ {
		ev, err := s.NextEvent(ctx)
		require.NoError(t, err)

		assert.Equal(t, SourceSimulated, ev.Source, "every simulated event carries its provenance")
		assert.GreaterOrEqual(t, ev.Confidence, 0.0)
		assert.LessOrEqual(t, ev.Confidence, 1.0)
		assert.Contains(t, []State{StateAlert, StateDrowsy}, ev.State)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestSimulatedConfidenceAvoidsExtremes(t *testing.T) {
	s := newTestSimulated(t)
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		ev, err := s.NextEvent(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ev.Confidence, simConfidenceFloor)
		assert.LessOrEqual(t, ev.Confidence, simConfidenceCeil)
	}
}

func TestSimulatedEventsAreOrdered(t *testing.T) {
	s := newTestSimulated(t)
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var prev time.Time
	for i := 0; i < 20; i++ {
		ev, err := s.NextEvent(ctx)
		require.NoError(t, err)
		assert.False(t, ev.Timestamp.Before(prev), "events arrive in generation order")
		prev = ev.Timestamp
	}
}

func TestNextEventBeforeStart(t *testing.T) {
	s := newTestSimulated(t)

	_, err := s.NextEvent(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestNextEventAfterStop(t *testing.T) {
	s := newTestSimulated(t)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	_, err := s.NextEvent(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStopIsIdempotent(t *testing.T) {
	s := newTestSimulated(t)
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	s.Stop() // second call must be a no-op
}

func TestStopBeforeStart(t *testing.T) {
	s := NewSimulated(SimulatedConfig{Tick: time.Millisecond}, zap.NewNop())
	s.Stop()

	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidState)
}

func TestStartTwice(t *testing.T) {
	s := newTestSimulated(t)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrInvalidState)
}

func TestStopUnblocksNextEvent(t *testing.T) {
	// Long tick so NextEvent is genuinely blocked when Stop lands.
	s := NewSimulated(SimulatedConfig{Tick: time.Minute, Seed: 1}, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		_, err := s.NextEvent(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrStopped) || errors.Is(err, ErrInvalidState))
	case <-time.After(2 * time.Second):
		t.Fatal("NextEvent was not unblocked by Stop")
	}
}
