package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hilite-live/hilite/internal/cluster"
	"github.com/hilite-live/hilite/internal/domain/highlight"
)

func (s *Server) handleDocsList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.docs.ListIDs(r.Context(), s.cfg.Docs.DefaultDoc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"docs":    ids,
		"default": s.cfg.Docs.DefaultDoc,
	})
}

func (s *Server) handleSourcesList(w http.ResponseWriter, _ *http.Request) {
	names, err := s.sources.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sources": names,
		"default": s.cfg.Docs.DefaultSource,
	})
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	name := s.sources.Sanitize(r.URL.Query().Get("source"))
	content, contentType, err := s.sources.Render(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	docID, ok := s.docParam(w, r)
	if !ok {
		return
	}
	snap, err := s.docs.EnsureTokens(r.Context(), docID, r.URL.Query().Get("source"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"doc":        snap.DocID,
		"tokens":     snap.Tokens,
		"sourceName": snap.SourceName,
		"locked":     snap.Locked,
		"updated":    snap.Updated,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	docID, ok := s.docParam(w, r)
	if !ok {
		return
	}
	snap, err := s.docs.EnsureTokens(r.Context(), docID, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	ranges, err := s.docs.DominantRanges(r.Context(), docID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ranges == nil {
		ranges = []highlight.Range{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"doc":     docID,
		"ranges":  ranges,
		"locked":  snap.Locked,
		"updated": snap.Updated,
	})
}

func (s *Server) handleMyRanges(w http.ResponseWriter, r *http.Request) {
	docID, ok := s.docParam(w, r)
	if !ok {
		return
	}
	clientID := r.URL.Query().Get("client")
	if clientID == "" {
		s.writeValidationError(w, "client is required")
		return
	}
	if _, err := s.docs.EnsureTokens(r.Context(), docID, ""); err != nil {
		s.writeError(w, err)
		return
	}
	ranges, err := s.docs.MyRanges(r.Context(), docID, clientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ranges == nil {
		ranges = []highlight.Range{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"doc":    docID,
		"ranges": ranges,
	})
}

func (s *Server) handlePhrases(w http.ResponseWriter, r *http.Request) {
	docID, ok := s.docParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	color := q.Get("color")
	if color == "" {
		color = cluster.ColorAll
	}
	mode := q.Get("mode")
	if mode == "" {
		mode = "longest"
	}
	minCount := 1
	if raw := q.Get("min"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeValidationError(w, "min must be a positive integer")
			return
		}
		minCount = parsed
	}

	if _, err := s.docs.EnsureTokens(r.Context(), docID, ""); err != nil {
		s.writeError(w, err)
		return
	}
	records, err := s.docs.PhraseRecords(r.Context(), docID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	phrases := cluster.Cluster(records, cluster.Options{
		Color:         color,
		PreferLongest: mode == "longest",
		MinCount:      minCount,
	})
	if phrases == nil {
		phrases = []cluster.Phrase{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"doc":     docID,
		"phrases": phrases,
		"color":   color,
		"mode":    mode,
		"min":     minCount,
	})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	docID, ok := s.docParam(w, r)
	if !ok {
		return
	}
	action := r.URL.Query().Get("action")
	if action != "lock" && action != "unlock" {
		s.writeValidationError(w, "action must be lock or unlock")
		return
	}
	if err := s.docs.SetLocked(r.Context(), docID, action == "lock"); err != nil {
		s.writeError(w, err)
		return
	}
	s.docHub.Publish(docID, controlMessage{Type: "control", Action: action})
	s.writeJSON(w, http.StatusOK, map[string]any{
		"doc":    docID,
		"locked": action == "lock",
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	docID, ok := s.docParam(w, r)
	if !ok {
		return
	}
	clientID := r.URL.Query().Get("client")

	if clientID != "" {
		changed, err := s.docs.ClearClient(r.Context(), docID, clientID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if changed {
			s.docHub.Publish(docID, stateUpdatedMessage{Type: "state_updated"})
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"doc": docID, "cleared": changed})
		return
	}

	if err := s.docs.ClearAll(r.Context(), docID); err != nil {
		s.writeError(w, err)
		return
	}
	s.docHub.Publish(docID, stateUpdatedMessage{Type: "state_updated"})
	s.writeJSON(w, http.StatusOK, map[string]any{"doc": docID, "cleared": true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	docID, ok := s.docParam(w, r)
	if !ok {
		return
	}
	snap, err := s.docs.Retokenize(r.Context(), docID, r.URL.Query().Get("source"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.docHub.Publish(docID, stateUpdatedMessage{Type: "state_updated"})
	s.writeJSON(w, http.StatusOK, map[string]any{
		"doc":        docID,
		"sourceName": snap.SourceName,
		"tokenCount": len(snap.Tokens),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	docID, ok := s.docParam(w, r)
	if !ok {
		return
	}
	if _, err := s.docs.EnsureTokens(r.Context(), docID, ""); err != nil {
		s.writeError(w, err)
		return
	}
	export, err := s.docs.Export(r.Context(), docID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", docID+"_export.json"))
		s.writeJSON(w, http.StatusOK, export)
	case "jsonl":
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", docID+"_export.jsonl"))
		enc := json.NewEncoder(w)
		for i, token := range export.Tokens {
			line := map[string]any{
				"index": i,
				"token": token,
			}
			if i < len(export.Votes) && len(export.Votes[i]) > 0 {
				line["votes"] = export.Votes[i]
			}
			if err := enc.Encode(line); err != nil {
				s.logger.Error("failed to stream export", "doc", docID, "error", err)
				return
			}
		}
	default:
		s.writeValidationError(w, "format must be json or jsonl")
	}
}
