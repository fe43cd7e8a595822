package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event is a message pushed to a user's connected devices.
type Event struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	RecordID  string      `json:"record_id,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Hub tracks websocket connections per user. A user may hold several
// connections at once (one per signed-in device); events fan out to all
// of them so every device refreshes its view.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]struct{}
}

// NewHub creates a new connection hub
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Register adds a connection for a user
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*websocket.Conn]struct{})
	}
	h.connections[userID][conn] = struct{}{}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a connection for a user
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, exists := h.connections[userID]; exists {
		if _, ok := conns[conn]; ok {
			conn.Close()
			delete(conns, conn)
			if len(conns) == 0 {
				delete(h.connections, userID)
			}
			log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
		}
	}
}

// SendToUser sends an event to every connection a user holds
func (h *Hub) SendToUser(userID string, event Event) error {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.connections[userID]))
	for conn := range h.connections[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Unregister(userID, conn)
		}
	}
	return nil
}

// IsOnline checks if a user has at least one connection
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID]) > 0
}

// NotifyAttendanceUpdated tells the user's devices that the day's record
// changed so they re-fetch it and re-sign its photo URLs.
func (h *Hub) NotifyAttendanceUpdated(userID, recordID string) {
	event := Event{
		Type:      "attendance_updated",
		RecordID:  recordID,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := h.SendToUser(userID, event); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("No devices to notify")
	}
}

// NotifySignedOut tells the user's devices that the session ended.
func (h *Hub) NotifySignedOut(userID string) {
	event := Event{
		Type:      "signed_out",
		Timestamp: time.Now().UnixMilli(),
	}
	if err := h.SendToUser(userID, event); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("No devices to notify")
	}
}
