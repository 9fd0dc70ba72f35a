package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/detection"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/metrics"
	"github.com/mwafrikacpu/Drowsiness-and-Yawn-Detection-System/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type wsClient struct {
	conn     *websocket.Conn
	clientID string
	send     chan WebSocketMessage
}

// Hub fans detection events and alerts out to every connected dashboard.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*wsClient),
		logger:  logger,
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastEvent pushes one detection event to all clients. The source tag
// travels with every event so the dashboard can label demo telemetry.
func (h *Hub) BroadcastEvent(ev detection.Event) {
	h.broadcast(WebSocketMessage{
		Type:      "DETECTION_EVENT",
		Payload:   ev,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Hub) BroadcastAlert(a models.Alert) {
	h.broadcast(WebSocketMessage{
		Type:      "ALERT",
		Payload:   a,
		Timestamp: time.Now().Unix(),
	})
}

func (h *Hub) broadcast(msg WebSocketMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Slow consumer; drop rather than block the detection loop.
		}
	}
}

// CloseAll disconnects every client, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for clientID, client := range h.clients {
		close(client.send)
		client.conn.Close()
		h.logger.Info("Closed WebSocket connection", zap.String("client", clientID))
	}
	h.clients = make(map[string]*wsClient)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the connection and registers the client with
// the hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = "client-" + uuid.NewString()
	}

	client := &wsClient{
		conn:     conn,
		clientID: clientID,
		send:     make(chan WebSocketMessage, 256),
	}

	h.mu.Lock()
	h.clients[clientID] = client
	h.mu.Unlock()
	metrics.AddWebSocketClient(1)

	h.logger.Info("WebSocket client connected", zap.String("client", clientID))

	go h.readPump(client)
	go h.writePump(client)

	client.send <- WebSocketMessage{
		Type:      "WELCOME",
		ClientID:  clientID,
		Timestamp: time.Now().Unix(),
		Payload: map[string]interface{}{
			"message": "Connected to DrowsiSense server",
			"version": "1.0",
		},
	}
}

func (h *Hub) readPump(client *wsClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[client.clientID]; ok {
			delete(h.clients, client.clientID)
			close(client.send)
		}
		h.mu.Unlock()
		metrics.AddWebSocketClient(-1)

		client.conn.Close()
		h.logger.Info("WebSocket client disconnected", zap.String("client", client.clientID))
	}()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WebSocketMessage
		err := client.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket error", zap.String("client", client.clientID), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "PING":
			client.send <- WebSocketMessage{
				Type:      "PONG",
				ClientID:  client.clientID,
				Timestamp: time.Now().Unix(),
			}
		default:
			h.logger.Debug("Unknown message type", zap.String("type", msg.Type))
		}
	}
}

func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
