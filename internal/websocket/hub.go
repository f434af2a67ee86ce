package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is a real-time event pushed to connected dashboard windows.
type Message struct {
	Type  string         `json:"type"`
	Extra map[string]any `json:"extra,omitempty"`
}

// Message types the dashboard reacts to.
const (
	TypeNotificationShow = "notification_show"
	TypeNavigate         = "navigate"
	TypeFocus            = "focus"
)

// NotificationMessage builds a notification_show event carrying the
// rendered title and options.
func NotificationMessage(title string, options any) Message {
	return Message{
		Type:  TypeNotificationShow,
		Extra: map[string]any{"title": title, "options": options},
	}
}

// NavigateMessage builds a navigate event for an in-app URL.
func NavigateMessage(url string) Message {
	return Message{Type: TypeNavigate, Extra: map[string]any{"url": url}}
}

// FocusMessage builds a focus event that brings a window to the front.
func FocusMessage() Message {
	return Message{Type: TypeFocus}
}

// Hub maintains the set of connected dashboard windows and broadcasts
// events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every connected window.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// Clients returns a snapshot of the connected windows.
func (h *Hub) Clients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// ClientCount returns the number of connected windows.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
