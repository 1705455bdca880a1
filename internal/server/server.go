// Package server exposes the HTTP and websocket surface: document reads,
// highlight state, survey forms, button panels, navigation routing.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/hilite-live/hilite/internal/config"
	"github.com/hilite-live/hilite/internal/domain/highlight"
	"github.com/hilite-live/hilite/internal/domain/panel"
	"github.com/hilite-live/hilite/internal/domain/survey"
	"github.com/hilite-live/hilite/internal/hub"
	"github.com/hilite-live/hilite/internal/source"
)

// Server wires HTTP handlers to the domain managers.
type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	docs    *highlight.Manager
	forms   *survey.Manager
	panels  *panel.Manager
	sources *source.Library
	docHub  *hub.Hub
	nav     *hub.NavHub

	upgrader websocket.Upgrader
}

// New creates a server.
func New(
	cfg config.Config,
	logger *slog.Logger,
	docs *highlight.Manager,
	forms *survey.Manager,
	panels *panel.Manager,
	sources *source.Library,
	docHub *hub.Hub,
	nav *hub.NavHub,
) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		docs:    docs,
		forms:   forms,
		panels:  panels,
		sources: sources,
		docHub:  docHub,
		nav:     nav,
		upgrader: websocket.Upgrader{
			// Viewers connect from arbitrary hosts (projector screens,
			// phones on the venue network).
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(s.logger))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/ws/control", s.handleWSControl)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/docs", s.handleDocsList).Methods(http.MethodGet)
	api.HandleFunc("/sources", s.handleSourcesList).Methods(http.MethodGet)
	api.HandleFunc("/text", s.handleText).Methods(http.MethodGet)
	api.HandleFunc("/tokens", s.handleTokens).Methods(http.MethodGet)
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/myranges", s.handleMyRanges).Methods(http.MethodGet)
	api.HandleFunc("/phrases", s.handlePhrases).Methods(http.MethodGet)
	api.HandleFunc("/control", s.handleControl).Methods(http.MethodGet)
	api.HandleFunc("/clear", s.handleClear).Methods(http.MethodGet)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodGet)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)

	api.HandleFunc("/forms", s.handleFormsList).Methods(http.MethodGet)
	api.HandleFunc("/forms/config", s.handleFormConfig).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/forms/control", s.handleFormControl).Methods(http.MethodGet)
	api.HandleFunc("/forms/submit", s.handleFormSubmit).Methods(http.MethodPost)
	api.HandleFunc("/forms/results", s.handleFormResults).Methods(http.MethodGet)
	api.HandleFunc("/forms/clear", s.handleFormClear).Methods(http.MethodPost)

	api.HandleFunc("/panels", s.handlePanelsList).Methods(http.MethodGet)
	api.HandleFunc("/triggers/config", s.handlePanelConfig).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/triggers/control", s.handlePanelControl).Methods(http.MethodGet)
	api.HandleFunc("/triggers/fire", s.handlePanelFire).Methods(http.MethodPost)
	api.HandleFunc("/triggers/state", s.handlePanelState).Methods(http.MethodGet)
	api.HandleFunc("/triggers/reset", s.handlePanelReset).Methods(http.MethodPost)

	api.HandleFunc("/router/send", s.handleRouterSend).Methods(http.MethodPost)
	api.HandleFunc("/router/status", s.handleRouterStatus).Methods(http.MethodGet)
	api.HandleFunc("/router/default", s.handleRouterDefault).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// docParam extracts and validates the doc query parameter, defaulting to
// the configured document.
func (s *Server) docParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	docID := r.URL.Query().Get("doc")
	if docID == "" {
		docID = s.cfg.Docs.DefaultDoc
	}
	if !validDocID(docID) {
		s.writeValidationError(w, "invalid doc id")
		return "", false
	}
	return docID, true
}

func (s *Server) formParam(r *http.Request) string {
	return sanitizeName(r.URL.Query().Get("form"), s.cfg.Survey.DefaultForm)
}

func (s *Server) panelParam(r *http.Request) string {
	return sanitizeName(r.URL.Query().Get("panel"), s.cfg.Panel.DefaultPanel)
}
