package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hilite-live/hilite/internal/domain/highlight"
	"github.com/hilite-live/hilite/internal/hub"
)

const wsWriteTimeout = 5 * time.Second

// wsConn adapts a websocket connection to hub.Conn. Gorilla websockets
// allow one concurrent writer, so sends are serialized under a mutex, and
// the write deadline keeps a stuck peer from blocking a broadcast.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// handleWS is the viewer socket: hello, an initial snapshot, then a read
// loop for highlight strokes. State changes fan out to every viewer of the
// same document as state_updated signals.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("doc")
	if docID == "" {
		docID = s.cfg.Docs.DefaultDoc
	}
	if !validDocID(docID) {
		http.Error(w, "invalid doc id", http.StatusBadRequest)
		return
	}
	clientID := r.URL.Query().Get("client")
	if clientID == "" {
		clientID = "viewer-" + uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsConn{conn: conn}
	defer conn.Close()

	ctx := context.Background()
	snap, err := s.docs.EnsureTokens(ctx, docID, "")
	if err != nil {
		s.logger.Warn("failed to prepare document for viewer", "doc", docID, "error", err)
		snap = highlight.Snapshot{DocID: docID}
	}

	s.docHub.Subscribe(docID, c)
	defer s.docHub.Unsubscribe(docID, c)

	if err := c.sendJSON(helloMessage{Type: "hello", DocID: docID, ClientID: clientID, Locked: snap.Locked}); err != nil {
		return
	}
	if len(snap.Tokens) > 0 {
		ranges, err := s.docs.DominantRanges(ctx, docID)
		if err != nil {
			s.logger.Warn("failed to compute initial ranges", "doc", docID, "error", err)
		}
		if ranges == nil {
			ranges = []highlight.Range{}
		}
		if err := c.sendJSON(initMessage{Type: "init", Ranges: ranges}); err != nil {
			return
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.sendJSON(wsErrorMessage{Type: "error", Error: "validation", Detail: "malformed message"})
			continue
		}
		if msg.Type != "highlight" {
			continue
		}
		s.handleHighlightMessage(ctx, c, docID, clientID, msg)
	}
}

func (s *Server) handleHighlightMessage(ctx context.Context, c *wsConn, docID, clientID string, msg inboundMessage) {
	switch msg.Action {
	case "set_range":
		if msg.Start == nil || msg.End == nil {
			_ = c.sendJSON(wsErrorMessage{Type: "error", Error: "validation", Detail: "set_range requires start and end"})
			return
		}
		applied, err := s.docs.ApplyVote(ctx, docID, clientID, *msg.Start, *msg.End, msg.Color)
		if err != nil {
			s.sendWSError(c, err)
			return
		}
		if applied.Changed {
			s.docHub.Publish(docID, stateUpdatedMessage{Type: "state_updated"})
		}
	case "clear_all":
		changed, err := s.docs.ClearClient(ctx, docID, clientID)
		if err != nil {
			s.sendWSError(c, err)
			return
		}
		if changed {
			s.docHub.Publish(docID, stateUpdatedMessage{Type: "state_updated"})
		}
	default:
		_ = c.sendJSON(wsErrorMessage{Type: "error", Error: "validation", Detail: "unknown action"})
	}
}

func (s *Server) sendWSError(c *wsConn, err error) {
	switch {
	case errors.Is(err, highlight.ErrLocked):
		_ = c.sendJSON(wsErrorMessage{Type: "error", Error: "locked"})
	case errors.Is(err, highlight.ErrInvalidRange), errors.Is(err, highlight.ErrUnknownColor):
		_ = c.sendJSON(wsErrorMessage{Type: "error", Error: "validation", Detail: err.Error()})
	default:
		s.logger.Error("highlight message failed", "error", err)
		_ = c.sendJSON(wsErrorMessage{Type: "error", Error: "internal"})
	}
}

// handleWSControl is the navigation socket: screens register into a group
// and then just listen for navigate/reload commands.
func (s *Server) handleWSControl(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	clientID := r.URL.Query().Get("client")
	if clientID == "" {
		clientID = "screen-" + uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsConn{conn: conn}
	defer conn.Close()

	s.nav.Register(group, c)
	defer s.nav.Unregister(c)

	effective := group
	if effective == "" {
		effective = hub.GroupAll
	}
	if err := c.sendJSON(controlHelloMessage{Type: "control_hello", Group: effective, ClientID: clientID}); err != nil {
		return
	}

	// Navigation screens never send anything meaningful; drain until close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
