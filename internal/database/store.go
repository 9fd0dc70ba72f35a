package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/models"
)

func (db *DB) CreateSession(ctx context.Context, s models.Session) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, start_time, status, source, notes) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.StartTime, s.Status, s.Source, s.Notes,
	)
	return err
}

func (db *DB) StopSession(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE sessions SET end_time = now(), status = 'stopped' WHERE id = $1 AND status = 'active'`,
		id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (db *DB) GetSession(ctx context.Context, id string) (models.Session, error) {
	var s models.Session
	var endTime sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT id, start_time, end_time, status, source, notes FROM sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.StartTime, &endTime, &s.Status, &s.Source, &s.Notes)
	if err != nil {
		return models.Session{}, err
	}
	if endTime.Valid {
		s.EndTime = &endTime.Time
	}
	return s, nil
}

func (db *DB) InsertEvent(ctx context.Context, e models.Event) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO events (session_id, state, confidence, source, is_yawning, ts)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.SessionID, e.State, e.Confidence, e.Source, e.IsYawning, e.Timestamp,
	)
	return err
}

func (db *DB) ListEvents(ctx context.Context, sessionID string, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, session_id, state, confidence, source, is_yawning, ts
		 FROM events
		 WHERE ($1 = '' OR session_id = $1)
		 ORDER BY ts DESC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.Event, 0, limit)
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.State, &e.Confidence, &e.Source, &e.IsYawning, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (db *DB) InsertAlert(ctx context.Context, a models.Alert) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO alerts (session_id, alert_type, severity, description, confidence, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.SessionID, a.Type, a.Severity, a.Description, a.Confidence, a.Source, a.CreatedAt,
	).Scan(&id)
	return id, err
}

func (db *DB) ListAlerts(ctx context.Context, sessionID string, limit int) ([]models.Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, session_id, alert_type, severity, description, confidence, source, created_at
		 FROM alerts
		 WHERE ($1 = '' OR session_id = $1)
		 ORDER BY created_at DESC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0, limit)
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Type, &a.Severity, &a.Description, &a.Confidence, &a.Source, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// SessionStats aggregates persisted counters for the dashboard. An empty
// session id aggregates across all sessions.
func (db *DB) SessionStats(ctx context.Context, sessionID string) (models.Stats, error) {
	stats := models.Stats{SessionID: sessionID, GeneratedAt: time.Now()}

	err := db.QueryRowContext(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE state = 'alert'),
		        count(*) FILTER (WHERE state = 'drowsy')
		 FROM events WHERE ($1 = '' OR session_id = $1)`,
		sessionID,
	).Scan(&stats.TotalEvents, &stats.AlertEvents, &stats.DrowsyEvents)
	if err != nil {
		return models.Stats{}, err
	}

	err = db.QueryRowContext(ctx,
		`SELECT count(*) FROM alerts WHERE ($1 = '' OR session_id = $1)`,
		sessionID,
	).Scan(&stats.TotalAlerts)
	if err != nil {
		return models.Stats{}, err
	}

	var lastState sql.NullString
	var lastTS sql.NullTime
	err = db.QueryRowContext(ctx,
		`SELECT state, ts FROM events WHERE ($1 = '' OR session_id = $1) ORDER BY ts DESC LIMIT 1`,
		sessionID,
	).Scan(&lastState, &lastTS)
	if err != nil && err != sql.ErrNoRows {
		return models.Stats{}, err
	}
	if lastState.Valid {
		stats.LastState = lastState.String
	}
	if lastTS.Valid {
		stats.LastEventAt = lastTS.Time
	}

	return stats, nil
}
