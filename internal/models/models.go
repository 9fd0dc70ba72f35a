package models

import (
	"time"

	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/detection"
)

type Session struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    string     `json:"status"`
	Source    string     `json:"source"`
	Notes     string     `json:"notes,omitempty"`
}

type Event struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	State      string    `json:"state"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	IsYawning  bool      `json:"is_yawning"`
	Timestamp  time.Time `json:"timestamp"`
}

type Alert struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateSessionRequest struct {
	Notes string `json:"notes,omitempty"`
}

// EventFromDetection binds a strategy observation to a session for storage.
func EventFromDetection(sessionID string, ev detection.Event) Event {
	return Event{
		SessionID:  sessionID,
		State:      string(ev.State),
		Confidence: ev.Confidence,
		Source:     string(ev.Source),
		IsYawning:  ev.IsYawning,
		Timestamp:  ev.Timestamp,
	}
}
