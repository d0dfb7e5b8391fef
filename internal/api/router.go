package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency check on /health.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/", s.handleRoot)

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	r.Route("/things/{thingID}", func(r chi.Router) {
		r.Get("/", s.handleGetThing)

		r.Route("/properties", func(r chi.Router) {
			r.Get("/", s.handleGetProperties)
			r.Get("/{name}", s.handleGetProperty)
			r.Put("/{name}", s.handlePutProperty)
			r.Get("/{name}/history", s.handleGetPropertyHistory)
		})

		r.Route("/actions", func(r chi.Router) {
			r.Get("/", s.handleListActions)
			r.Post("/{name}", s.handleRequestAction)
			r.Get("/{name}/{actionID}", s.handleGetAction)
		})
	})

	return r
}

// handleHealth reports overall status, per-thing poison state and every
// configured dependency. Any failure answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK

	things := make(map[string]string, s.registry.Len())
	for _, h := range s.registry.Things() {
		if h.Poisoned() {
			things[h.ID()] = "poisoned"
			status = http.StatusServiceUnavailable
			continue
		}
		things[h.ID()] = "ok"
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string]string, len(names))
	details := make(map[string]map[string]any)
	for _, name := range names {
		if d, ok := s.checks[name].(HealthDetailer); ok {
			details[name] = d.HealthDetails()
		}
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	body := map[string]any{
		"status":       overall,
		"version":      s.version,
		"mode":         s.registry.Mode().String(),
		"things":       things,
		"dependencies": deps,
		"ws_clients":   s.hub.ClientCount(),
	}
	if len(details) > 0 {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
