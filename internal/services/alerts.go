package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/detection"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/metrics"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/models"
)

const (
	AlertTypeDrowsiness = "drowsiness"
	AlertTypeYawning    = "yawning"

	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// AlertStore is the slice of the database the alert service needs.
type AlertStore interface {
	InsertAlert(ctx context.Context, a models.Alert) (int64, error)
}

// AlertService creates alert records with a cooldown so one drowsy spell
// does not flood the driver with notifications. Created alerts are pushed
// to the dashboard via the broadcast hook.
type AlertService struct {
	store     AlertStore
	logger    *zap.Logger
	cooldown  time.Duration
	broadcast func(models.Alert)

	mu        sync.Mutex
	lastAlert time.Time
}

func NewAlertService(store AlertStore, cooldown time.Duration, broadcast func(models.Alert), logger *zap.Logger) *AlertService {
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}
	if broadcast == nil {
		broadcast = func(models.Alert) {}
	}
	return &AlertService{
		store:     store,
		logger:    logger,
		cooldown:  cooldown,
		broadcast: broadcast,
	}
}

// Trigger creates an alert unless one fired within the cooldown window.
// With an empty sessionID the alert is broadcast without being persisted.
// Returns whether an alert was actually created.
func (s *AlertService) Trigger(ctx context.Context, sessionID, alertType, severity, description string, ev detection.Event) (bool, error) {
	s.mu.Lock()
	if time.Since(s.lastAlert) < s.cooldown {
		s.mu.Unlock()
		return false, nil
	}
	s.lastAlert = time.Now()
	s.mu.Unlock()

	alert := models.Alert{
		SessionID:   sessionID,
		Type:        alertType,
		Severity:    severity,
		Description: description,
		Confidence:  ev.Confidence,
		Source:      string(ev.Source),
		CreatedAt:   time.Now(),
	}

	// Outside a monitoring session there is no row to attach the alert
	// to; like sessionless events it is still broadcast to the dashboard.
	if sessionID != "" {
		id, err := s.store.InsertAlert(ctx, alert)
		if err != nil {
			s.logger.Error("Failed to persist alert", zap.String("type", alertType), zap.Error(err))
			return false, err
		}
		alert.ID = id
	}

	metrics.ObserveAlert(alertType, severity)
	s.broadcast(alert)

	s.logger.Info("Alert created",
		zap.Int64("id", alert.ID),
		zap.String("type", alertType),
		zap.String("severity", severity),
		zap.String("source", string(ev.Source)))
	return true, nil
}
