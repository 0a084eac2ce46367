// Package webnotify pushes event-bus activity to connected web clients in
// real time over WebSocket, implementing the event bus's optional
// web-notifier hook.
package webnotify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aetherius-core/aetherius/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type pushMessage struct {
	EventType string                 `json:"event_type"`
	Fields    map[string]interface{} `json:"fields"`
	At        time.Time              `json:"at"`
}

// Hub tracks connected WebSocket clients and fans out pushed events to
// whichever ones the bus names as subscribers.
type Hub struct {
	log logger.Logger

	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

// NewHub builds an empty Hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{log: log, clients: make(map[string]*websocket.Conn)}
}

// Upgrade promotes an HTTP request to a WebSocket connection and registers
// it under clientID until the connection closes.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, clientID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.clients[clientID] = conn
	h.mu.Unlock()

	go h.drainUntilClosed(clientID, conn)
	return nil
}

// drainUntilClosed reads (and discards) incoming frames just to detect
// client-initiated close/disconnect, since this hub is push-only.
func (h *Hub) drainUntilClosed(clientID string, conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Notify implements the events.WebNotifier signature: push eventType/fields
// to every client id in subscribers that is currently connected.
func (h *Hub) Notify(subscribers []string, eventType string, fields map[string]interface{}) {
	msg := pushMessage{EventType: eventType, Fields: fields, At: time.Now()}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("webnotify: failed to marshal push message", "error", err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range subscribers {
		conn, ok := h.clients[id]
		if !ok {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn("webnotify: push failed, dropping client", "client", id, "error", err.Error())
			conn.Close()
			delete(h.clients, id)
		}
	}
}

// ConnectedClients returns the currently connected client ids, for status
// reporting.
func (h *Hub) ConnectedClients() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.clients))
	for id := range h.clients {
		out = append(out, id)
	}
	return out
}
