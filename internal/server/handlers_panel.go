package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hilite-live/hilite/internal/domain/panel"
)

func (s *Server) handlePanelsList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.panels.ListIDs(r.Context(), s.cfg.Panel.DefaultPanel)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"panels":  ids,
		"default": s.cfg.Panel.DefaultPanel,
	})
}

func (s *Server) handlePanelConfig(w http.ResponseWriter, r *http.Request) {
	panelID := s.panelParam(r)

	if r.Method == http.MethodGet {
		cfg, err := s.panels.Config(r.Context(), panelID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, cfg)
		return
	}

	var body struct {
		Buttons  []panel.Button `json:"buttons"`
		Cooldown *float64       `json:"cooldown"`
		Locked   *bool          `json:"locked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeValidationError(w, "malformed body")
		return
	}
	cfg, err := s.panels.UpdateConfig(r.Context(), panelID, panel.ConfigUpdate{
		Buttons:  body.Buttons,
		Cooldown: body.Cooldown,
		Locked:   body.Locked,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePanelControl(w http.ResponseWriter, r *http.Request) {
	panelID := s.panelParam(r)
	action := r.URL.Query().Get("action")
	if action != "lock" && action != "unlock" {
		s.writeValidationError(w, "action must be lock or unlock")
		return
	}
	cfg, err := s.panels.SetLocked(r.Context(), panelID, action == "lock")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePanelFire(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Panel     string `json:"panel"`
		Client    string `json:"client"`
		Button    string `json:"button"`
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeValidationError(w, "malformed body")
		return
	}
	panelID := sanitizeName(body.Panel, s.panelParam(r))
	if body.Client == "" {
		s.writeValidationError(w, "client is required")
		return
	}

	ev, err := s.panels.Fire(r.Context(), panelID, body.Client, body.Button, body.Direction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"accepted": true,
		"event":    ev,
	})
}

func (s *Server) handlePanelState(w http.ResponseWriter, r *http.Request) {
	panelID := s.panelParam(r)
	since := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			s.writeValidationError(w, "since must be a non-negative integer")
			return
		}
		since = parsed
	}
	state, err := s.panels.State(r.Context(), panelID, since)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if state.Events == nil {
		state.Events = []panel.Event{}
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePanelReset(w http.ResponseWriter, r *http.Request) {
	panelID := s.panelParam(r)
	if err := s.panels.Reset(r.Context(), panelID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"panel": panelID,
		"reset": true,
	})
}
