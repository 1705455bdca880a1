package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hilite-live/hilite/internal/domain/survey"
)

func (s *Server) handleFormsList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.forms.ListIDs(r.Context(), s.cfg.Survey.DefaultForm)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"forms":   ids,
		"default": s.cfg.Survey.DefaultForm,
	})
}

func (s *Server) handleFormConfig(w http.ResponseWriter, r *http.Request) {
	formID := s.formParam(r)

	if r.Method == http.MethodGet {
		cfg, err := s.forms.Config(r.Context(), formID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, cfg)
		return
	}

	var body struct {
		Question    *string  `json:"question"`
		Cooldown    *float64 `json:"cooldown"`
		AllowRepeat *bool    `json:"allowRepeat"`
		Locked      *bool    `json:"locked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeValidationError(w, "malformed body")
		return
	}
	cfg, err := s.forms.UpdateConfig(r.Context(), formID, survey.ConfigUpdate{
		Question:    body.Question,
		Cooldown:    body.Cooldown,
		AllowRepeat: body.AllowRepeat,
		Locked:      body.Locked,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleFormControl(w http.ResponseWriter, r *http.Request) {
	formID := s.formParam(r)
	action := r.URL.Query().Get("action")
	if action != "lock" && action != "unlock" {
		s.writeValidationError(w, "action must be lock or unlock")
		return
	}
	cfg, err := s.forms.SetLocked(r.Context(), formID, action == "lock")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Form   string `json:"form"`
		Client string `json:"client"`
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeValidationError(w, "malformed body")
		return
	}
	formID := sanitizeName(body.Form, s.formParam(r))
	if body.Client == "" {
		s.writeValidationError(w, "client is required")
		return
	}

	resp, err := s.forms.Submit(r.Context(), formID, body.Client, body.Answer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"accepted": true,
		"response": resp,
	})
}

func (s *Server) handleFormResults(w http.ResponseWriter, r *http.Request) {
	formID := s.formParam(r)
	since := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			s.writeValidationError(w, "since must be a non-negative integer")
			return
		}
		since = parsed
	}
	results, err := s.forms.Results(r.Context(), formID, since)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if results.Responses == nil {
		results.Responses = []survey.Response{}
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleFormClear(w http.ResponseWriter, r *http.Request) {
	formID := s.formParam(r)
	if err := s.forms.Clear(r.Context(), formID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"form":    formID,
		"cleared": true,
	})
}
