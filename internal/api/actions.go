package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-things/internal/action"
)

// handleRequestAction asks the executor for the named action. The optional
// body is {"input": {...}}. Unrecognised names answer 400.
func (s *Server) handleRequestAction(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupThing(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")

	var body struct {
		Input action.Input `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rec, err := s.actions.Request(h, name, body.Input)
	if err != nil {
		s.logger.Debug("action request rejected", "thing_id", h.ID(), "name", name, "error", err)
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/things/"+h.ID()+"/actions/"+rec.Name+"/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupThing(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.actions.List(h.ID()))
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupThing(w, r)
	if !ok {
		return
	}

	rec, err := s.actions.Get(h.ID(), chi.URLParam(r, "actionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rec.Name != chi.URLParam(r, "name") {
		writeNotFound(w, "action not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
