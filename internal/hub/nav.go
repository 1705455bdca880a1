package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// GroupAll addresses every connected navigation client regardless of group.
const GroupAll = "all"

// Command records the last navigation command sent, for the status view.
type Command struct {
	Group   string  `json:"group"`
	Message any     `json:"message"`
	SentAt  float64 `json:"ts"`
}

// Status describes the navigation hub for facilitators.
type Status struct {
	Groups  map[string]int `json:"groups"`
	Last    *Command       `json:"last"`
	Default string         `json:"default,omitempty"`
}

// NavHub is the broadcast channel for navigation and reload commands. It
// is independent of document sessions: screens register under a named
// group and facilitators push commands at whole groups.
type NavHub struct {
	logger        *slog.Logger
	mu            sync.Mutex
	groups        map[string]map[Conn]struct{}
	assignments   map[Conn]string
	last          *Command
	defaultTarget string
	now           func() time.Time
}

// NewNav creates an empty navigation hub.
func NewNav(logger *slog.Logger) *NavHub {
	return &NavHub{
		logger:      logger,
		groups:      make(map[string]map[Conn]struct{}),
		assignments: make(map[Conn]string),
		now:         time.Now,
	}
}

// Register adds a connection under a group; an empty group means GroupAll.
func (h *NavHub) Register(group string, c Conn) {
	if group == "" {
		group = GroupAll
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.groups[group]
	if conns == nil {
		conns = make(map[Conn]struct{})
		h.groups[group] = conns
	}
	conns[c] = struct{}{}
	h.assignments[c] = group
}

// Unregister removes a connection wherever it is registered. Idempotent.
func (h *NavHub) Unregister(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *NavHub) unregisterLocked(c Conn) {
	group, ok := h.assignments[c]
	if !ok {
		return
	}
	delete(h.assignments, c)
	if conns := h.groups[group]; conns != nil {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.groups, group)
		}
	}
}

// Broadcast sends message to every connection in the group; GroupAll (or an
// empty group) reaches every connection. The command is remembered for
// Status regardless of how many deliveries succeed.
func (h *NavHub) Broadcast(group string, message any) int {
	if group == "" {
		group = GroupAll
	}
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to encode navigation command", "group", group, "error", err)
		return 0
	}

	h.mu.Lock()
	var targets []Conn
	if group == GroupAll {
		for c := range h.assignments {
			targets = append(targets, c)
		}
	} else {
		for c := range h.groups[group] {
			targets = append(targets, c)
		}
	}
	h.last = &Command{
		Group:   group,
		Message: message,
		SentAt:  float64(h.now().UnixNano()) / float64(time.Second),
	}
	h.mu.Unlock()

	delivered := 0
	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			h.logger.Debug("dropping dead navigation client", "group", group, "error", err)
			h.mu.Lock()
			h.unregisterLocked(c)
			h.mu.Unlock()
			continue
		}
		delivered++
	}
	return delivered
}

// SetDefault remembers the target newly connecting screens should open.
func (h *NavHub) SetDefault(target string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaultTarget = target
}

// Default returns the remembered navigation target, if any.
func (h *NavHub) Default() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.defaultTarget
}

// Status reports per-group connection counts and the last command sent.
func (h *NavHub) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	groups := make(map[string]int, len(h.groups))
	for group, conns := range h.groups {
		groups[group] = len(conns)
	}
	return Status{Groups: groups, Last: h.last, Default: h.defaultTarget}
}
