// Package hub fans out change notifications to connected viewers.
//
// Delivery is best-effort: a connection that fails to accept a message is
// dropped from its group so it can never hold up the rest. A dropped push
// is harmless because pushes are only a signal to re-fetch state.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Conn is one subscriber connection. Send must not block indefinitely;
// implementations are expected to enforce a write deadline.
type Conn interface {
	Send(data []byte) error
}

// Hub maintains the set of live subscriber connections per group key.
type Hub struct {
	logger *slog.Logger
	mu     sync.Mutex
	groups map[string]map[Conn]struct{}
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		groups: make(map[string]map[Conn]struct{}),
	}
}

// Subscribe adds a connection to a group.
func (h *Hub) Subscribe(group string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.groups[group]
	if conns == nil {
		conns = make(map[Conn]struct{})
		h.groups[group] = conns
	}
	conns[c] = struct{}{}
}

// Unsubscribe removes a connection from a group. Safe to call for
// connections that were never (or are no longer) subscribed.
func (h *Hub) Unsubscribe(group string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(group, c)
}

func (h *Hub) removeLocked(group string, c Conn) {
	conns := h.groups[group]
	if conns == nil {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.groups, group)
	}
}

// Subscribers returns the number of connections in a group.
func (h *Hub) Subscribers(group string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[group])
}

// Publish delivers message (marshalled once) to every connection in the
// group. Connections whose send fails are dropped. Returns the number of
// successful deliveries.
func (h *Hub) Publish(group string, message any) int {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to encode broadcast message", "group", group, "error", err)
		return 0
	}

	h.mu.Lock()
	conns := make([]Conn, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	delivered := 0
	for _, c := range conns {
		if err := c.Send(payload); err != nil {
			h.logger.Debug("dropping dead subscriber", "group", group, "error", err)
			h.mu.Lock()
			h.removeLocked(group, c)
			h.mu.Unlock()
			continue
		}
		delivered++
	}
	return delivered
}
