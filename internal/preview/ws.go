package preview

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// TelemetryHandler broadcasts pilot snapshots via WebSocket.
type TelemetryHandler struct {
	telemetry Telemetry
	clients   map[*websocket.Conn]bool
	mu        sync.RWMutex
}

// NewTelemetryHandler creates a new TelemetryHandler reading from the
// given telemetry source.
func NewTelemetryHandler(t Telemetry) *TelemetryHandler {
	h := &TelemetryHandler{
		telemetry: t,
		clients:   make(map[*websocket.Conn]bool),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *TelemetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends the current snapshot to all connected clients.
func (h *TelemetryHandler) broadcast() {
	ticker := time.NewTicker(250 * time.Millisecond) // ~4 Hz
	defer ticker.Stop()

	for range ticker.C {
		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}
		h.mu.RUnlock()

		snap := h.telemetry.Snapshot()

		h.mu.RLock()
		for conn := range h.clients {
			conn.WriteJSON(snap)
		}
		h.mu.RUnlock()
	}
}
