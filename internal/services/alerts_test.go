package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/detection"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/models"
)

type fakeAlertStore struct {
	mu     sync.Mutex
	alerts []models.Alert
	nextID int64
}

func (f *fakeAlertStore) InsertAlert(_ context.Context, a models.Alert) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	f.alerts = append(f.alerts, a)
	return f.nextID, nil
}

func (f *fakeAlertStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func simEvent() detection.Event {
	return detection.Event{
		Timestamp:  time.Now(),
		State:      detection.StateDrowsy,
		Confidence: 0.8,
		Source:     detection.SourceSimulated,
	}
}

func TestAlertServicePersistsAndBroadcasts(t *testing.T) {
	store := &fakeAlertStore{}
	var broadcasted []models.Alert
	svc := NewAlertService(store, time.Hour, func(a models.Alert) {
		broadcasted = append(broadcasted, a)
	}, zap.NewNop())

	created, err := svc.Trigger(context.Background(), "session-1", AlertTypeDrowsiness, SeverityHigh, "Drowsiness detected!", simEvent())
	require.NoError(t, err)
	assert.True(t, created)

	require.Equal(t, 1, store.count())
	alert := store.alerts[0]
	assert.Equal(t, "session-1", alert.SessionID)
	assert.Equal(t, AlertTypeDrowsiness, alert.Type)
	assert.Equal(t, SeverityHigh, alert.Severity)
	assert.Equal(t, string(detection.SourceSimulated), alert.Source, "alerts carry the event provenance")

	require.Len(t, broadcasted, 1)
	assert.Equal(t, int64(1), broadcasted[0].ID)
}

func TestAlertServiceSessionlessBroadcastsWithoutPersisting(t *testing.T) {
	store := &fakeAlertStore{}
	var broadcasted []models.Alert
	svc := NewAlertService(store, time.Hour, func(a models.Alert) {
		broadcasted = append(broadcasted, a)
	}, zap.NewNop())

	created, err := svc.Trigger(context.Background(), "", AlertTypeDrowsiness, SeverityHigh, "Drowsiness detected!", simEvent())
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, 0, store.count(), "no session row exists to attach the alert to")
	require.Len(t, broadcasted, 1, "the dashboard still gets the alert")
	assert.Equal(t, int64(0), broadcasted[0].ID)
	assert.Equal(t, "", broadcasted[0].SessionID)
}

func TestAlertServiceCooldownSuppresses(t *testing.T) {
	store := &fakeAlertStore{}
	svc := NewAlertService(store, time.Hour, nil, zap.NewNop())

	created, err := svc.Trigger(context.Background(), "s", AlertTypeDrowsiness, SeverityHigh, "first", simEvent())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.Trigger(context.Background(), "s", AlertTypeYawning, SeverityMedium, "too soon", simEvent())
	require.NoError(t, err)
	assert.False(t, created, "second alert within cooldown must be suppressed")

	assert.Equal(t, 1, store.count())
}

func TestAlertServiceCooldownExpires(t *testing.T) {
	store := &fakeAlertStore{}
	svc := NewAlertService(store, 10*time.Millisecond, nil, zap.NewNop())

	created, err := svc.Trigger(context.Background(), "s", AlertTypeDrowsiness, SeverityHigh, "first", simEvent())
	require.NoError(t, err)
	assert.True(t, created)

	time.Sleep(30 * time.Millisecond)

	created, err = svc.Trigger(context.Background(), "s", AlertTypeDrowsiness, SeverityHigh, "second", simEvent())
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, 2, store.count())
}
