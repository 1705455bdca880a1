package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/hilite-live/hilite/internal/domain/highlight"
	"github.com/hilite-live/hilite/internal/domain/panel"
	"github.com/hilite-live/hilite/internal/domain/survey"
	"github.com/hilite-live/hilite/internal/ratelimit"
	"github.com/hilite-live/hilite/internal/source"
	"github.com/hilite-live/hilite/internal/store"
)

type errorBody struct {
	Error   string  `json:"error"`
	Detail  string  `json:"detail,omitempty"`
	RetryIn float64 `json:"retry_in,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeValidationError(w http.ResponseWriter, detail string) {
	s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation", Detail: detail})
}

// writeError maps domain errors onto the HTTP error surface.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var cooldown *ratelimit.CooldownError
	switch {
	case errors.Is(err, highlight.ErrLocked),
		errors.Is(err, survey.ErrLocked),
		errors.Is(err, panel.ErrLocked):
		s.writeJSON(w, http.StatusLocked, errorBody{Error: "locked"})
	case errors.As(err, &cooldown):
		retry := math.Ceil(cooldown.RetryAfter.Seconds()*10) / 10
		s.writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "cooldown", RetryIn: retry})
	case errors.Is(err, survey.ErrDuplicate):
		s.writeJSON(w, http.StatusConflict, errorBody{Error: "repeat_not_allowed"})
	case errors.Is(err, highlight.ErrInvalidRange),
		errors.Is(err, highlight.ErrUnknownColor),
		errors.Is(err, survey.ErrEmptyAnswer),
		errors.Is(err, survey.ErrInvalidQuestion),
		errors.Is(err, panel.ErrInvalidDirection):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation", Detail: err.Error()})
	case errors.Is(err, panel.ErrUnknownButton),
		errors.Is(err, source.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Detail: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}
