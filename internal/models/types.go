package models

import "time"

type HealthStatus struct {
	Status        string `json:"status"`
	Strategy      string `json:"strategy"`
	Degraded      bool   `json:"degraded"`
	Database      bool   `json:"database"`
	Cache         bool   `json:"cache"`
	ActiveClients int    `json:"active_clients"`
	UptimeSec     int64  `json:"uptime_sec"`
	Timestamp     string `json:"timestamp"`
}

// Stats is the dashboard snapshot. Counts are per current session unless
// the session id is empty, in which case they cover the whole store.
type Stats struct {
	SessionID    string    `json:"session_id,omitempty"`
	Strategy     string    `json:"strategy"`
	Degraded     bool      `json:"degraded"`
	TotalEvents  int64     `json:"total_events"`
	AlertEvents  int64     `json:"alert_events"`
	DrowsyEvents int64     `json:"drowsy_events"`
	TotalAlerts  int64     `json:"total_alerts"`
	LastState    string    `json:"last_state,omitempty"`
	LastEventAt  time.Time `json:"last_event_at,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
	Code      string `json:"code,omitempty"`
}
