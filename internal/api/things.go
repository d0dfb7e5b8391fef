package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-things/internal/history"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// RootDescription is the multiple-mode root document.
type RootDescription struct {
	Name   string              `json:"name"`
	Things []LinkedDescription `json:"things"`
}

// handleRoot serves the thing description in single mode and the named
// collection in multiple mode.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	handles := s.registry.Things()

	if s.registry.Mode() == thing.ModeSingle {
		desc, err := handles[0].Describe()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.withLinks(desc))
		return
	}

	root := RootDescription{
		Name:   s.registry.Name(),
		Things: make([]LinkedDescription, 0, len(handles)),
	}
	for _, h := range handles {
		desc, err := h.Describe()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		root.Things = append(root.Things, s.withLinks(desc))
	}
	writeJSON(w, http.StatusOK, root)
}

func (s *Server) handleGetThing(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupThing(w, r)
	if !ok {
		return
	}
	desc, err := h.Describe()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.withLinks(desc))
}

// handleGetProperties returns {name: value} for every property.
func (s *Server) handleGetProperties(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupThing(w, r)
	if !ok {
		return
	}

	var values map[string]float64
	err := h.Read(func(t *thing.Thing) error {
		values = t.PropertyValues()
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// handleGetProperty returns {name: value}.
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupThing(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")

	v, err := h.PropertyValue(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{name: v})
}

// handlePutProperty applies an external write. The body is {name: value};
// the response carries the value actually stored after clamping.
func (s *Server) handlePutProperty(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupThing(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")

	var body map[string]json.Number
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	raw, ok := body[name]
	if !ok {
		writeBadRequest(w, fmt.Sprintf("body must contain %q", name))
		return
	}
	v, err := raw.Float64()
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		writeBadRequest(w, fmt.Sprintf("%q must be a finite number", name))
		return
	}

	stored, err := h.WriteProperty(name, v)
	if err != nil {
		if errors.Is(err, thing.ErrReadOnly) {
			s.logger.Warn("rejected write to read-only property",
				"thing_id", h.ID(),
				"property", name,
				"request_id", r.Context().Value(ctxKeyRequestID),
			)
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{name: stored})
}

// handleGetPropertyHistory returns recorded values newest first.
// Query: ?limit=N (default 50, max 500).
func (s *Server) handleGetPropertyHistory(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupThing(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")

	if _, err := h.PropertySchema(name); err != nil {
		writeDomainError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "property history unavailable")
		return
	}

	entries, err := s.history.List(r.Context(), h.ID(), name, limit)
	if err != nil {
		s.logger.Error("loading property history failed", "thing_id", h.ID(), "property", name, "error", err)
		writeInternalError(w, "failed to load property history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"thing_id": h.ID(),
		"property": name,
		"history":  entries,
		"count":    len(entries),
	})
}

// lookupThing resolves {thingID} or writes a 404.
func (s *Server) lookupThing(w http.ResponseWriter, r *http.Request) (*thing.Handle, bool) {
	h, err := s.registry.Thing(chi.URLParam(r, "thingID"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return h, true
}

// Link is a Web Thing description link.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// LinkedDescription is a thing description with its transport links.
type LinkedDescription struct {
	thing.Description
	Href  string `json:"href"`
	Links []Link `json:"links"`
}

// withLinks attaches the REST and WebSocket links for desc.
func (s *Server) withLinks(desc thing.Description) LinkedDescription {
	base := "/things/" + desc.ID
	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	return LinkedDescription{
		Description: desc,
		Href:        base,
		Links: []Link{
			{Rel: "properties", Href: base + "/properties"},
			{Rel: "actions", Href: base + "/actions"},
			{Rel: "alternate", Href: wsPath},
		},
	}
}
