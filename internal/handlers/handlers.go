package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/cache"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/capability"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/detection"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/models"
)

// Monitor is the slice of the engine the HTTP layer reads and drives.
type Monitor interface {
	Report() capability.Report
	ActiveStrategy() detection.Source
	Degraded() bool
	ActiveSession() string
	Uptime() time.Duration
	StartSession(ctx context.Context, notes string) (models.Session, error)
	StopSession(ctx context.Context, id string) error
}

// Store is the read side of the database the handlers need.
type Store interface {
	GetSession(ctx context.Context, id string) (models.Session, error)
	ListEvents(ctx context.Context, sessionID string, limit int) ([]models.Event, error)
	ListAlerts(ctx context.Context, sessionID string, limit int) ([]models.Alert, error)
	SessionStats(ctx context.Context, sessionID string) (models.Stats, error)
	PingContext(ctx context.Context) error
}

type Handler struct {
	monitor     Monitor
	store       Store
	cache       cache.Provider
	hub         *Hub
	corsOrigins string
	logger      *zap.Logger
}

func NewHandler(monitor Monitor, store Store, cacheProvider cache.Provider, hub *Hub, corsOrigins string, logger *zap.Logger) *Handler {
	return &Handler{
		monitor:     monitor,
		store:       store,
		cache:       cacheProvider,
		hub:         hub,
		corsOrigins: corsOrigins,
		logger:      logger,
	}
}

// Register wires all API routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.Health)
	mux.HandleFunc("/api/capability", h.Capability)
	mux.HandleFunc("/api/stats", h.Stats)
	mux.HandleFunc("/api/sessions", h.Sessions)
	mux.HandleFunc("/api/sessions/", h.SessionByID)
	mux.HandleFunc("/api/events", h.Events)
	mux.HandleFunc("/api/alerts", h.Alerts)
	mux.HandleFunc("/ws", h.hub.HandleWebSocket)
}

func (h *Handler) enableCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", h.corsOrigins)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, models.ErrorResponse{
		Error:     msg,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.enableCORS(w)
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbOK := h.store.PingContext(ctx) == nil
	cacheOK := h.cache.Ping(ctx) == nil

	status := "healthy"
	if !dbOK {
		status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:        status,
		Strategy:      string(h.monitor.ActiveStrategy()),
		Degraded:      h.monitor.Degraded(),
		Database:      dbOK,
		Cache:         cacheOK,
		ActiveClients: h.hub.ClientCount(),
		UptimeSec:     int64(h.monitor.Uptime().Seconds()),
		Timestamp:     time.Now().Format(time.RFC3339),
	})
}

// Capability exposes the probe result plus the selected strategy so
// operators can see why the process is (or is not) in demo mode.
func (h *Handler) Capability(w http.ResponseWriter, r *http.Request) {
	h.enableCORS(w)
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"report":   h.monitor.Report(),
		"strategy": h.monitor.ActiveStrategy(),
		"degraded": h.monitor.Degraded(),
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.enableCORS(w)
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = h.monitor.ActiveSession()
	}

	stats, err := h.store.SessionStats(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Stats query failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	stats.Strategy = string(h.monitor.ActiveStrategy())
	stats.Degraded = h.monitor.Degraded()

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	h.enableCORS(w)
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateSessionRequest
	if r.Body != nil {
		// Empty body is fine; notes are optional.
		json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := h.monitor.StartSession(r.Context(), req.Notes)
	if err != nil {
		h.logger.Error("Failed to start session", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, session)
}

// SessionByID handles GET /api/sessions/{id} and POST /api/sessions/{id}/stop.
func (h *Handler) SessionByID(w http.ResponseWriter, r *http.Request) {
	h.enableCORS(w)

	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if rest == "" {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/stop"); ok {
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if err := h.monitor.StopSession(r.Context(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				h.writeError(w, http.StatusNotFound, "Session not found or already stopped")
				return
			}
			h.logger.Error("Failed to stop session", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "id": id})
		return
	}

	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	session, err := h.store.GetSession(r.Context(), rest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("Failed to load session", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, session)
}

func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	h.enableCORS(w)
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.store.ListEvents(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("Events query failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, events)
}

func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	h.enableCORS(w)
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	alerts, err := h.store.ListAlerts(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("Alerts query failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, alerts)
}
