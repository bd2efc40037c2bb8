package websocket

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
)

// Message types sent to browser windows.
const (
	TypeAttendanceChanged = "attendance_changed"
	TypeNotification      = "notification"
	TypeFocus             = "focus"
	TypePushState         = "push_state"
)

// TypeLocation is the only message windows send: the URL they show.
const TypeLocation = "location"

// Message is a JSON frame exchanged with a window.
type Message struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
	Data any    `json:"data,omitempty"`
}

// NewMessage creates a Message carrying data.
func NewMessage(typ string, data any) Message {
	return Message{Type: typ, Data: data}
}

// Hub tracks open windows and where each one is.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

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

func (h *Hub) setLocation(c *Client, loc string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		c.location = loc
		c.seq = h.nextSeq()
	}
	h.mu.Unlock()
}

// nextSeq must be called with mu held.
func (h *Hub) nextSeq() uint64 {
	var max uint64
	for c := range h.clients {
		if c.seq > max {
			max = c.seq
		}
	}
	return max + 1
}

// Broadcast sends a message to all connected clients.
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
			// buffer full, drop
		}
	}
}

// Focus asks the most recently navigated window showing the same path as
// target to bring itself forward and load target. It reports whether such a
// window exists.
func (h *Hub) Focus(target string, data any) bool {
	want := pathOf(target)
	if want == "" {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var best *Client
	for c := range h.clients {
		if c.location == "" || pathOf(c.location) != want {
			continue
		}
		if best == nil || c.seq > best.seq {
			best = c
		}
	}
	if best == nil {
		return false
	}

	frame, err := json.Marshal(Message{Type: TypeFocus, URL: target, Data: data})
	if err != nil {
		h.logger.Error("marshal focus", "error", err)
		return false
	}
	select {
	case best.send <- frame:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
