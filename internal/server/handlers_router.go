package server

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleRouterSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Group          string `json:"group"`
		Action         string `json:"action"`
		Target         string `json:"target"`
		PreserveClient bool   `json:"preserveClient"`
		PreserveParams bool   `json:"preserveParams"`
		SetDefault     bool   `json:"setDefault"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeValidationError(w, "malformed body")
		return
	}

	var delivered int
	switch body.Action {
	case "navigate":
		if body.Target == "" {
			s.writeValidationError(w, "navigate requires a target")
			return
		}
		delivered = s.nav.Broadcast(body.Group, navigateMessage{
			Type:           "navigate",
			Target:         body.Target,
			PreserveClient: body.PreserveClient,
			PreserveParams: body.PreserveParams,
		})
		if body.SetDefault {
			s.nav.SetDefault(body.Target)
		}
	case "reload":
		delivered = s.nav.Broadcast(body.Group, reloadMessage{Type: "reload"})
	default:
		s.writeValidationError(w, "action must be navigate or reload")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"action":    body.Action,
		"group":     body.Group,
		"delivered": delivered,
	})
}

func (s *Server) handleRouterStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.nav.Status())
}

func (s *Server) handleRouterDefault(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"default": s.nav.Default(),
	})
}
